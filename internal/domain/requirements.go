package domain

// RequirementsRecord accumulates the answers of the guided intake dialogue.
type RequirementsRecord struct {
	CampaignIdea      string `json:"campaign_idea,omitempty"`
	RoleTitle         string `json:"role_title,omitempty"`
	Industry          string `json:"industry,omitempty"`
	Seniority         string `json:"seniority,omitempty"`
	KeySkills         string `json:"key_skills,omitempty"`
	CompanyCulture    string `json:"company_culture,omitempty"`
	SourcingChannels  string `json:"sourcing_channels,omitempty"`
	Benefits          string `json:"benefits,omitempty"`
	Timeline          string `json:"timeline,omitempty"`
	Objections        string `json:"objections,omitempty"`
	IncludeInterviews bool   `json:"include_interviews"`
	SpecialElements   string `json:"special_elements,omitempty"`
}

// FlowState is the pending position of a guided intake dialogue. Step is the
// question currently awaiting an answer (1-based).
type FlowState struct {
	Step      int                `json:"step"`
	Collected RequirementsRecord `json:"collected_info"`
}
