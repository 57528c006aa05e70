package model

import "time"

// Membership statuses.
const (
	MembershipActive  = "active"
	MembershipExpired = "expired"
	MembershipPending = "pending"
)

// User is the site account. Registration and login live outside this service.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:150;uniqueIndex;not null"`
	FirstName string `gorm:"size:150"`
	LastName  string `gorm:"size:150"`
	Email     string `gorm:"size:254"`
}

// Trainer is a gym coach shown on the site.
type Trainer struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:100;not null"`
	Specialization string `gorm:"size:100"`
	Description    string `gorm:"type:text"`
	PhotoURL       string `gorm:"size:200"`
}

// TrainingProgram is a purchasable program, optionally led by a trainer.
type TrainingProgram struct {
	ID          uint     `gorm:"primaryKey"`
	Name        string   `gorm:"size:100;not null"`
	Description string   `gorm:"type:text"`
	Duration    int      `gorm:"not null"` // minutes
	Price       float64  `gorm:"type:decimal(10,2);not null"`
	TrainerID   *uint    `gorm:"index"`
	Trainer     *Trainer `gorm:"constraint:OnDelete:CASCADE"`
}

// Membership links a user to a program for a date range.
type Membership struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"not null;index:idx_memberships_user_program_status,priority:1"`
	ProgramID uint            `gorm:"not null;index:idx_memberships_user_program_status,priority:2"`
	Program   TrainingProgram `gorm:"foreignKey:ProgramID;constraint:OnDelete:CASCADE"`
	StartDate time.Time       `gorm:"type:date;not null"`
	EndDate   time.Time       `gorm:"type:date;not null"`
	Status    string          `gorm:"size:10;not null;default:pending;index:idx_memberships_user_program_status,priority:3"`
}
