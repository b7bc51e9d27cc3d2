package sequence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
)

// Oracle answers a single prompt. *llm.Gateway satisfies it.
type Oracle interface {
	Ask(ctx context.Context, system, prompt string) (string, error)
}

// Synthesis phases reported in SynthesisError.
const (
	PhaseAnalysis     = "analysis"
	PhaseGeneration   = "generation"
	PhaseModification = "modification"
)

// ErrIncompleteAnalysis means the analysis object lacked a field the
// generation prompt interpolates. key_skills may be empty.
var ErrIncompleteAnalysis = errors.New("analysis missing required fields")

// SynthesisError reports model output that did not have the required
// shape. Raw keeps the model text for diagnostics.
type SynthesisError struct {
	Phase string
	Raw   string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("sequence %s failed: %v", e.Phase, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Draft is a synthesized sequence that has not been stored yet.
type Draft struct {
	Title    string
	Steps    []domain.SequenceStep
	Metadata domain.SequenceMetadata
}

// Analysis is the structured reading of free-text requirements.
type Analysis struct {
	RoleTitle   string    `json:"role_title"`
	Industry    string    `json:"industry"`
	Seniority   string    `json:"seniority"`
	KeySkills   skillList `json:"key_skills"`
	CompanyType string    `json:"company_type"`
}

// skillList accepts either a JSON array or a comma separated string.
type skillList []string

func (s *skillList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = arr
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("key_skills: want list or string")
	}
	*s = splitList(str)
	return nil
}

// Synthesizer turns requirements into sequence drafts using the oracle.
type Synthesizer struct {
	oracle Oracle
	log    *logging.Logger
	now    func() time.Time
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(oracle Oracle, log *logging.Logger) *Synthesizer {
	return &Synthesizer{
		oracle: oracle,
		log:    log.Sub("sequence"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const analysisPrompt = `Analyze these recruiting requirements and return ONLY a JSON object with the following fields:
Requirements: %s

IMPORTANT: Respond with ONLY a JSON object containing these exact fields:
{
    "role_title": "the job title",
    "industry": "the industry",
    "seniority": "Junior/Mid/Senior",
    "key_skills": ["skill1", "skill2"],
    "company_type": "Startup/Enterprise/Agency"
}`

const stepsShape = `IMPORTANT: Respond with ONLY a JSON array of sequence steps. Each step must have these exact fields:
[
    {
        "id": "1",
        "type": "email/linkedin/call/other",
        "content": "detailed message content",
        "delay": number_of_days,
        "personalization_tips": "how to personalize this message"
    }
]`

const generationPrompt = "Generate a recruiting sequence as a JSON array based on this analysis:\n%s\n\n" + stepsShape

const recordPrompt = "Generate a recruiting outreach sequence as a JSON array for this campaign:\n%s\n%s\n" + stepsShape

const interviewInstruction = "\nAfter the outreach steps, append interview process steps (screening call, technical or skills interview, final interview) with realistic delays.\n"

const modifyPrompt = `Modify this sequence based on the following feedback:
Feedback: %s

Current sequence:
%s

Return ONLY the modified sequence as a JSON array with the same structure.`

const systemPrompt = "You are Helix, a recruiting outreach assistant. You write concise, personal, professional candidate outreach. You answer with JSON only."

// FromText analyzes free-text requirements, then generates steps.
func (s *Synthesizer) FromText(ctx context.Context, requirements string) (*Draft, error) {
	raw, err := s.oracle.Ask(ctx, systemPrompt, fmt.Sprintf(analysisPrompt, requirements))
	if err != nil {
		return nil, fmt.Errorf("sequence analysis: %w", err)
	}
	analysis, err := parseAnalysis(raw)
	if err != nil {
		return nil, &SynthesisError{Phase: PhaseAnalysis, Raw: raw, Err: err}
	}

	pretty, _ := json.MarshalIndent(analysis, "", "  ")
	steps, err := s.generate(ctx, fmt.Sprintf(generationPrompt, pretty))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("role", analysis.RoleTitle).
		Int("steps", len(steps)).
		Msg("sequence synthesized from text")

	return &Draft{
		Title: titleFor(analysis.RoleTitle),
		Steps: steps,
		Metadata: domain.SequenceMetadata{
			Role:        analysis.RoleTitle,
			Industry:    analysis.Industry,
			Seniority:   analysis.Seniority,
			CompanyType: analysis.CompanyType,
			KeySkills:   []string(analysis.KeySkills),
			GeneratedAt: s.now(),
		},
	}, nil
}

// FromRecord generates steps from a completed intake record. No analysis
// call is needed since the record is already structured.
func (s *Synthesizer) FromRecord(ctx context.Context, rec domain.RequirementsRecord) (*Draft, error) {
	extra := ""
	if rec.IncludeInterviews {
		extra = interviewInstruction
	}
	steps, err := s.generate(ctx, fmt.Sprintf(recordPrompt, describeRecord(rec), extra))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("role", rec.RoleTitle).
		Bool("interviews", rec.IncludeInterviews).
		Int("steps", len(steps)).
		Msg("sequence synthesized from intake")

	return &Draft{
		Title: titleFor(rec.RoleTitle),
		Steps: steps,
		Metadata: domain.SequenceMetadata{
			Role:                   rec.RoleTitle,
			Industry:               rec.Industry,
			Seniority:              rec.Seniority,
			KeySkills:              splitList(rec.KeySkills),
			CampaignIdea:           rec.CampaignIdea,
			CompanyCulture:         rec.CompanyCulture,
			SourcingChannels:       rec.SourcingChannels,
			Benefits:               rec.Benefits,
			Timeline:               rec.Timeline,
			Objections:             rec.Objections,
			SpecialElements:        rec.SpecialElements,
			IncludesInterviewSteps: rec.IncludeInterviews,
			GeneratedAt:            s.now(),
		},
	}, nil
}

// Modify rewrites steps according to free-text instructions.
func (s *Synthesizer) Modify(ctx context.Context, steps []domain.SequenceStep, instructions string) ([]domain.SequenceStep, error) {
	current, _ := json.MarshalIndent(steps, "", "  ")
	raw, err := s.oracle.Ask(ctx, systemPrompt, fmt.Sprintf(modifyPrompt, instructions, current))
	if err != nil {
		return nil, fmt.Errorf("sequence modification: %w", err)
	}
	out, err := ParseSteps(raw)
	if err != nil {
		return nil, &SynthesisError{Phase: PhaseModification, Raw: raw, Err: err}
	}
	return out, nil
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) ([]domain.SequenceStep, error) {
	raw, err := s.oracle.Ask(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("sequence generation: %w", err)
	}
	steps, err := ParseSteps(raw)
	if err != nil {
		return nil, &SynthesisError{Phase: PhaseGeneration, Raw: raw, Err: err}
	}
	return steps, nil
}

func parseAnalysis(raw string) (*Analysis, error) {
	text := llm.StripCodeFence(raw)
	var a Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		obj, ok := llm.ExtractObject(text)
		if !ok {
			return nil, fmt.Errorf("no JSON object in analysis: %w", err)
		}
		if err := json.Unmarshal([]byte(obj), &a); err != nil {
			return nil, fmt.Errorf("decoding analysis: %w", err)
		}
	}
	required := []struct {
		name  string
		value *string
	}{
		{"role_title", &a.RoleTitle},
		{"industry", &a.Industry},
		{"seniority", &a.Seniority},
		{"company_type", &a.CompanyType},
	}
	var missing []string
	for _, f := range required {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteAnalysis, strings.Join(missing, ", "))
	}
	return &a, nil
}

func describeRecord(rec domain.RequirementsRecord) string {
	var b strings.Builder
	line := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, v)
		}
	}
	line("Campaign idea", rec.CampaignIdea)
	line("Role", rec.RoleTitle)
	line("Industry", rec.Industry)
	line("Seniority", rec.Seniority)
	line("Key skills", rec.KeySkills)
	line("Company culture", rec.CompanyCulture)
	line("Sourcing channels", rec.SourcingChannels)
	line("Benefits", rec.Benefits)
	line("Timeline", rec.Timeline)
	line("Common objections", rec.Objections)
	line("Special elements", rec.SpecialElements)
	if rec.IncludeInterviews {
		b.WriteString("- Include interview steps: yes\n")
	} else {
		b.WriteString("- Include interview steps: no\n")
	}
	return b.String()
}

func titleFor(role string) string {
	if role = strings.TrimSpace(role); role == "" {
		return domain.DefaultSequenceTitle
	}
	return role + " " + domain.DefaultSequenceTitle
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
