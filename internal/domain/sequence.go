package domain

import "time"

// StepType is the outreach channel of a sequence step.
type StepType string

const (
	StepEmail    StepType = "email"
	StepLinkedIn StepType = "linkedin"
	StepCall     StepType = "call"
	StepOther    StepType = "other"
)

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	switch t {
	case StepEmail, StepLinkedIn, StepCall, StepOther:
		return true
	}
	return false
}

// SequenceStep is a single outreach touchpoint. Delay is in days.
type SequenceStep struct {
	ID                  string   `json:"id"`
	Type                StepType `json:"type"`
	Content             string   `json:"content"`
	Delay               int      `json:"delay"`
	PersonalizationTips string   `json:"personalization_tips,omitempty"`
}

// SequenceMetadata describes how a sequence was produced.
type SequenceMetadata struct {
	Role                   string    `json:"role,omitempty"`
	Industry               string    `json:"industry,omitempty"`
	Seniority              string    `json:"seniority,omitempty"`
	CompanyType            string    `json:"company_type,omitempty"`
	KeySkills              []string  `json:"key_skills,omitempty"`
	CampaignIdea           string    `json:"campaign_idea,omitempty"`
	CompanyCulture         string    `json:"company_culture,omitempty"`
	SourcingChannels       string    `json:"sourcing_channels,omitempty"`
	Benefits               string    `json:"benefits,omitempty"`
	Timeline               string    `json:"timeline,omitempty"`
	Objections             string    `json:"objections,omitempty"`
	SpecialElements        string    `json:"special_elements,omitempty"`
	IncludesInterviewSteps bool      `json:"includes_interview_steps"`
	GeneratedAt            time.Time `json:"generated_at,omitzero"`
}

// Sequence is an ordered outreach plan for a role or campaign.
type Sequence struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Steps     []SequenceStep   `json:"steps"`
	Metadata  SequenceMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DefaultSequenceTitle is used when no role is known.
const DefaultSequenceTitle = "Recruiting Sequence"

// DefaultSteps returns the starter sequence used when a user edits before
// anything has been generated.
func DefaultSteps() []SequenceStep {
	return []SequenceStep{
		{ID: "1", Type: StepEmail, Content: "Initial outreach email introducing the company and role", Delay: 0},
		{ID: "2", Type: StepLinkedIn, Content: "Follow-up LinkedIn message to connect", Delay: 2},
		{ID: "3", Type: StepCall, Content: "Schedule initial phone call to discuss the role", Delay: 3},
	}
}

// CloneSteps returns a copy of steps that can be mutated independently.
func CloneSteps(steps []SequenceStep) []SequenceStep {
	if steps == nil {
		return nil
	}
	out := make([]SequenceStep, len(steps))
	copy(out, steps)
	return out
}

// CountByType tallies steps per type.
func CountByType(steps []SequenceStep) map[StepType]int {
	counts := make(map[StepType]int)
	for _, s := range steps {
		counts[s.Type]++
	}
	return counts
}
