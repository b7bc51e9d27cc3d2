package sequence

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/soyeahso/helix/internal/domain"
)

// FlowSteps is the number of intake questions.
const FlowSteps = 10

// QuestionStatus tags a flow question payload.
const QuestionStatus = "question"

// Question is the payload returned while the intake dialogue is running.
// It is also the text form stored in history, so a caller holding only the
// transcript can resume the flow.
type Question struct {
	Status       string           `json:"status"`
	Question     string           `json:"question"`
	SequenceInfo domain.FlowState `json:"sequence_info"`
}

// JSON renders q as its wire form.
func (q Question) JSON() string {
	data, _ := json.Marshal(q)
	return string(data)
}

// Outcome is the result of feeding one answer to the flow. Exactly one of
// Question, Record or Cancelled is set.
type Outcome struct {
	Question  *Question
	Record    *domain.RequirementsRecord
	Cancelled bool
}

type topic struct {
	field  string
	ask    func(rec domain.RequirementsRecord) string
	record func(rec *domain.RequirementsRecord, answer string)
}

var topics = [FlowSteps]topic{
	{
		field: "campaign_idea",
		ask: func(rec domain.RequirementsRecord) string {
			if rec.RoleTitle != "" {
				return fmt.Sprintf("Let's build a recruiting sequence for a %s together. First, what's the main idea or goal of this campaign?", rec.RoleTitle)
			}
			return "Let's build your recruiting sequence together. First, what's the main idea or goal of this campaign?"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.CampaignIdea = a },
	},
	{
		field: "role",
		ask: func(rec domain.RequirementsRecord) string {
			if rec.RoleTitle != "" {
				return fmt.Sprintf("You're hiring a %s. Which industry is this role in, and what seniority level are you targeting? Reply on two lines:\nIndustry\nSeniority", rec.RoleTitle)
			}
			return "What role are you hiring for? Reply on three lines:\nJob title\nIndustry\nSeniority (e.g. Junior, Mid, Senior)"
		},
		record: recordRole,
	},
	{
		field: "key_skills",
		ask: func(rec domain.RequirementsRecord) string {
			return fmt.Sprintf("Which key skills or qualifications matter most for the %s role?", roleOr(rec, "this"))
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.KeySkills = a },
	},
	{
		field: "company_culture",
		ask: func(domain.RequirementsRecord) string {
			return "How would you describe your company culture and what makes it a great place to work?"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.CompanyCulture = a },
	},
	{
		field: "sourcing_channels",
		ask: func(domain.RequirementsRecord) string {
			return "Where do you plan to find candidates? (e.g. LinkedIn, referrals, job boards, events)"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.SourcingChannels = a },
	},
	{
		field: "benefits",
		ask: func(domain.RequirementsRecord) string {
			return "What compensation, benefits or perks should the outreach highlight?"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.Benefits = a },
	},
	{
		field: "timeline",
		ask: func(domain.RequirementsRecord) string {
			return "What's your hiring timeline? How quickly do you need to fill this role?"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.Timeline = a },
	},
	{
		field: "objections",
		ask: func(rec domain.RequirementsRecord) string {
			return fmt.Sprintf("What objections or concerns do %s candidates usually raise, and how do you address them?", roleOr(rec, "your"))
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.Objections = a },
	},
	{
		field: "include_interviews",
		ask: func(domain.RequirementsRecord) string {
			return "Should the sequence also include interview process steps? (yes/no)"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.IncludeInterviews = ParseYes(a) },
	},
	{
		field: "special_elements",
		ask: func(domain.RequirementsRecord) string {
			return "Finally, is there anything special you'd like included? (e.g. a video message, a portfolio review, a team intro)"
		},
		record: func(rec *domain.RequirementsRecord, a string) { rec.SpecialElements = a },
	},
}

var cancelWords = map[string]bool{"cancel": true, "stop": true, "exit": true}

// StartFlow opens the intake dialogue for message, seeding the role when the
// message names a known job title.
func StartFlow(message string) Question {
	var rec domain.RequirementsRecord
	if title, ok := ExtractJobTitle(message); ok {
		rec.RoleTitle = title
	}
	return question(1, rec)
}

// AdvanceFlow records answer for the pending step and returns the next
// question, or the completed record after the last step.
func AdvanceFlow(state domain.FlowState, answer string) (Outcome, error) {
	if state.Step < 1 || state.Step > FlowSteps {
		return Outcome{}, fmt.Errorf("flow step %d out of range", state.Step)
	}

	answer = strings.TrimSpace(answer)
	if cancelWords[strings.ToLower(strings.Trim(answer, ".! "))] {
		return Outcome{Cancelled: true}, nil
	}

	rec := state.Collected
	topics[state.Step-1].record(&rec, answer)

	if state.Step == FlowSteps {
		return Outcome{Record: &rec}, nil
	}
	q := question(state.Step+1, rec)
	return Outcome{Question: &q}, nil
}

// ParseQuestion recovers flow state from a question payload, such as the
// text of an earlier agent message. Anything else reports false.
func ParseQuestion(text string) (domain.FlowState, bool) {
	var envelope struct {
		Status       string          `json:"status"`
		SequenceInfo json.RawMessage `json:"sequence_info"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &envelope); err != nil {
		return domain.FlowState{}, false
	}
	if envelope.Status != QuestionStatus || len(envelope.SequenceInfo) == 0 {
		return domain.FlowState{}, false
	}

	var state domain.FlowState
	if err := json.Unmarshal(envelope.SequenceInfo, &state); err != nil {
		return domain.FlowState{}, false
	}
	if state.Step < 1 || state.Step > FlowSteps {
		return domain.FlowState{}, false
	}
	return state, true
}

// FieldForStep names the record field the given step fills.
func FieldForStep(step int) string {
	if step < 1 || step > FlowSteps {
		return ""
	}
	return topics[step-1].field
}

// ParseYes reports whether answer contains "yes", ignoring case.
func ParseYes(answer string) bool {
	return strings.Contains(strings.ToLower(answer), "yes")
}

func question(step int, rec domain.RequirementsRecord) Question {
	return Question{
		Status:       QuestionStatus,
		Question:     topics[step-1].ask(rec),
		SequenceInfo: domain.FlowState{Step: step, Collected: rec},
	}
}

func roleOr(rec domain.RequirementsRecord, fallback string) string {
	if rec.RoleTitle != "" {
		return rec.RoleTitle
	}
	return fallback
}

var (
	listPrefix  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	labelPrefix = regexp.MustCompile(`(?i)^\s*(job title|title|role|position|industry|sector|seniority|level)\s*[:=-]\s*`)
)

// recordRole parses the title/industry/seniority answer. Labelled lines are
// honoured in any order; otherwise lines are assigned by position. A single
// unstructured line becomes the title, or the industry when the title was
// already known.
func recordRole(rec *domain.RequirementsRecord, answer string) {
	var lines []string
	for _, l := range strings.Split(answer, "\n") {
		l = strings.TrimSpace(listPrefix.ReplaceAllString(l, ""))
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 1 {
		if parts := strings.Split(lines[0], ","); len(parts) == 3 {
			lines = lines[:0]
			for _, p := range parts {
				lines = append(lines, strings.TrimSpace(p))
			}
		}
	}

	var unlabelled []string
	for _, l := range lines {
		m := labelPrefix.FindStringSubmatch(l)
		if m == nil {
			unlabelled = append(unlabelled, l)
			continue
		}
		value := strings.TrimSpace(l[len(m[0]):])
		switch strings.ToLower(m[1]) {
		case "job title", "title", "role", "position":
			rec.RoleTitle = value
		case "industry", "sector":
			rec.Industry = value
		case "seniority", "level":
			rec.Seniority = value
		}
	}
	if len(unlabelled) == 0 {
		return
	}

	targets := []*string{&rec.RoleTitle, &rec.Industry, &rec.Seniority}
	if rec.RoleTitle != "" && len(unlabelled) < 3 {
		targets = targets[1:]
	}
	for i, v := range unlabelled {
		if i >= len(targets) {
			break
		}
		*targets[i] = v
	}
}
