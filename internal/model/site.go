package model

// Goal is a coarse fitness intent inferred from a message.
type Goal string

const (
	GoalNone       Goal = ""
	GoalMuscleGain Goal = "muscle_gain"
	GoalWeightLoss Goal = "weight_loss"
	GoalEndurance  Goal = "endurance"
)

// UserInfo is the identity projection handed to the assistant.
type UserInfo struct {
	ID              *uint   `json:"id"`
	Username        *string `json:"username"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Email           string  `json:"email"`
	IsAuthenticated bool    `json:"is_authenticated"`
}

// ProgramRef is the program part of a membership projection.
type ProgramRef struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	DurationMin int    `json:"duration_min"`
	TrainerID   *uint  `json:"trainer_id"`
}

// TrainerRef is the trainer part of a membership projection.
type TrainerRef struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// MembershipInfo is the current-membership projection.
type MembershipInfo struct {
	Status    string      `json:"status"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Program   ProgramRef  `json:"program"`
	Trainer   *TrainerRef `json:"trainer"`
}

// TrainerInfo is a trainer as the assistant sees it.
type TrainerInfo struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Description    string `json:"description"`
}

// ProgramInfo is a training program as the assistant sees it.
type ProgramInfo struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	DurationMin int     `json:"duration_min"`
	Price       string  `json:"price"`
	TrainerID   *uint   `json:"trainer_id"`
	TrainerName *string `json:"trainer_name"`
}

// SiteContext is the snapshot of site data the assistant may cite.
type SiteContext struct {
	User       UserInfo        `json:"user"`
	Membership *MembershipInfo `json:"membership"`
	Trainers   []TrainerInfo   `json:"trainers"`
	Programs   []ProgramInfo   `json:"programs"`
}

// PromptContext is the subset of SiteContext embedded in the system prompt.
type PromptContext struct {
	Trainers   []TrainerInfo   `json:"trainers"`
	Programs   []ProgramInfo   `json:"programs"`
	Membership *MembershipInfo `json:"membership"`
}

// PromptContext returns the part of the snapshot sent to the model.
func (s *SiteContext) PromptContext() *PromptContext {
	return &PromptContext{
		Trainers:   s.Trainers,
		Programs:   s.Programs,
		Membership: s.Membership,
	}
}

// Suggestions are the per-request recommendations shown to the client and
// fed to the provider as grounding hints.
type Suggestions struct {
	GoalDetected        *Goal           `json:"goal_detected"`
	RecommendedTrainers []TrainerInfo   `json:"recommended_trainers"`
	RecommendedPrograms []ProgramInfo   `json:"recommended_programs"`
	Membership          *MembershipInfo `json:"membership"`
}
