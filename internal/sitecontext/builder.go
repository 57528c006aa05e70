// Package sitecontext assembles the site data the assistant may talk about
// and ranks trainers and programs against a detected fitness goal.
package sitecontext

import (
	"context"
	"strconv"

	"github.com/RomanRochniak/CapstoneGym/internal/model"
)

const (
	// DefaultLimit caps the trainer and program lists.
	DefaultLimit = 30
	// DescriptionLimit is the maximum description length, in characters.
	DescriptionLimit = 280
)

// Catalog is the read-only view of gym data the builder needs.
type Catalog interface {
	UserByID(ctx context.Context, id uint) (*model.User, error)
	LatestMembership(ctx context.Context, userID uint) (*model.Membership, error)
	Trainers(ctx context.Context, limit int) ([]model.Trainer, error)
	Programs(ctx context.Context, limit int) ([]model.TrainingProgram, error)
}

// Builder produces SiteContext snapshots.
type Builder struct {
	catalog Catalog
}

// NewBuilder creates a builder over catalog.
func NewBuilder(catalog Catalog) *Builder {
	return &Builder{catalog: catalog}
}

// Build snapshots the data visible to userID. A zero or unknown user yields
// an anonymous identity rather than an error. limit <= 0 means DefaultLimit.
func (b *Builder) Build(ctx context.Context, userID uint, limit int) (*model.SiteContext, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	site := &model.SiteContext{
		Trainers: []model.TrainerInfo{},
		Programs: []model.ProgramInfo{},
	}

	if userID != 0 {
		user, err := b.catalog.UserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		site.User = userInfo(user)

		membership, err := b.catalog.LatestMembership(ctx, userID)
		if err != nil {
			return nil, err
		}
		if membership != nil {
			site.Membership = membershipInfo(membership)
		}
	}

	trainers, err := b.catalog.Trainers(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, t := range trainers {
		site.Trainers = append(site.Trainers, model.TrainerInfo{
			ID:             t.ID,
			Name:           t.Name,
			Specialization: t.Specialization,
			Description:    truncate(t.Description, DescriptionLimit),
		})
	}

	programs, err := b.catalog.Programs(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, p := range programs {
		info := model.ProgramInfo{
			ID:          p.ID,
			Name:        p.Name,
			Description: truncate(p.Description, DescriptionLimit),
			DurationMin: p.Duration,
			Price:       formatPrice(p.Price),
			TrainerID:   p.TrainerID,
		}
		if p.Trainer != nil {
			name := p.Trainer.Name
			info.TrainerName = &name
		}
		site.Programs = append(site.Programs, info)
	}

	return site, nil
}

func userInfo(u *model.User) model.UserInfo {
	if u == nil {
		return model.UserInfo{}
	}
	id, username := u.ID, u.Username
	return model.UserInfo{
		ID:              &id,
		Username:        &username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		IsAuthenticated: true,
	}
}

func membershipInfo(m *model.Membership) *model.MembershipInfo {
	info := &model.MembershipInfo{
		Status:    m.Status,
		StartDate: m.StartDate.Format("2006-01-02"),
		EndDate:   m.EndDate.Format("2006-01-02"),
		Program: model.ProgramRef{
			ID:          m.Program.ID,
			Name:        m.Program.Name,
			Price:       formatPrice(m.Program.Price),
			DurationMin: m.Program.Duration,
			TrainerID:   m.Program.TrainerID,
		},
	}
	if t := m.Program.Trainer; t != nil {
		info.Trainer = &model.TrainerRef{
			ID:             t.ID,
			Name:           t.Name,
			Specialization: t.Specialization,
		}
	}
	return info
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
