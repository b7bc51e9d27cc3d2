package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/sequence"
)

const reviewerSystem = "You are an experienced recruiting operations lead reviewing outreach. Respond with JSON only."

const feedbackPrompt = `Analyze this recruiting sequence and provide feedback:
%s

Focus on:
1. Message effectiveness
2. Timing and pacing
3. Personalization opportunities
4. Professional tone
5. Call-to-action clarity

Return the feedback as a JSON object with these fields:
{
    "overall_rating": 1-10,
    "strengths": ["point1", "point2", ...],
    "areas_for_improvement": ["point1", "point2", ...],
    "specific_suggestions": ["suggestion1", "suggestion2", ...]
}`

// Feedback is a structured review of a sequence.
type Feedback struct {
	OverallRating       float64  `json:"overall_rating"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	SpecificSuggestions []string `json:"specific_suggestions"`
}

// ProvideFeedback critiques a sequence.
type ProvideFeedback struct {
	oracle sequence.Oracle
	book   *sequence.Book
}

// NewProvideFeedback creates the provide_feedback action.
func NewProvideFeedback(oracle sequence.Oracle, book *sequence.Book) *ProvideFeedback {
	return &ProvideFeedback{oracle: oracle, book: book}
}

func (p *ProvideFeedback) Kind() ActionKind { return ActionProvideFeedback }

func (p *ProvideFeedback) Description() string {
	return "Review a sequence and suggest improvements. Input: the sequence to review, or an empty string for the current sequence."
}

func (p *ProvideFeedback) Execute(ctx context.Context, call Call) (Result, error) {
	subject := strings.TrimSpace(call.Input)
	if subject == "" {
		steps := call.Sequence
		if len(steps) == 0 {
			seq, err := p.book.Current(ctx, call.SessionID)
			if err != nil {
				return Result{}, persistence("loading sequence", err)
			}
			if seq != nil {
				steps = seq.Steps
			}
		}
		if len(steps) == 0 {
			return inBand("No sequence to review", "There's no sequence to review yet. Would you like me to create one?"), nil
		}
		subject = sequence.FormatSteps(steps)
	}

	raw, err := p.oracle.Ask(ctx, reviewerSystem, fmt.Sprintf(feedbackPrompt, subject))
	if err != nil {
		return Result{}, err
	}

	fb, ok := parseFeedback(raw)
	if !ok {
		text := strings.TrimSpace(llm.StripCodeFence(raw))
		return Result{
			Payload: jsonPayload(map[string]any{"status": "success", "feedback_text": text}),
			Reply:   text,
		}, nil
	}
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "feedback": fb}),
		Reply:   formatFeedback(fb),
	}, nil
}

func parseFeedback(raw string) (Feedback, bool) {
	obj, ok := llm.ExtractObject(llm.StripCodeFence(raw))
	if !ok {
		return Feedback{}, false
	}
	var fb Feedback
	if err := json.Unmarshal([]byte(obj), &fb); err != nil {
		return Feedback{}, false
	}
	if fb.OverallRating == 0 && len(fb.Strengths) == 0 && len(fb.AreasForImprovement) == 0 && len(fb.SpecificSuggestions) == 0 {
		return Feedback{}, false
	}
	return fb, true
}

func formatFeedback(fb Feedback) string {
	var b strings.Builder
	if fb.OverallRating > 0 {
		fmt.Fprintf(&b, "Overall rating: %g/10\n", fb.OverallRating)
	}
	for _, section := range []struct {
		title string
		items []string
	}{
		{"Strengths", fb.Strengths},
		{"Areas for improvement", fb.AreasForImprovement},
		{"Suggestions", fb.SpecificSuggestions},
	} {
		if list := bulletList(section.items); list != "" {
			fmt.Fprintf(&b, "\n%s:\n%s", section.title, list)
		}
	}
	return strings.TrimSpace(b.String())
}

const writerSystem = "You are an experienced recruiter who writes clear, inclusive job descriptions. Respond with JSON only."

const jobDescriptionPrompt = `Create a professional job description based on these requirements:
%s

The job description should include:
1. Job Title
2. About the Company
3. Job Overview
4. Key Responsibilities
5. Required Qualifications
6. Preferred Qualifications
7. Benefits and Perks
8. How to Apply

Return the job description as a JSON object with these sections as keys.`

// JobDescription drafts a job posting.
type JobDescription struct {
	oracle sequence.Oracle
}

// NewJobDescription creates the generate_job_description action.
func NewJobDescription(oracle sequence.Oracle) *JobDescription {
	return &JobDescription{oracle: oracle}
}

func (j *JobDescription) Kind() ActionKind { return ActionGenerateJobDescription }

func (j *JobDescription) Description() string {
	return "Write a job description for a role. Input: the role and its requirements."
}

func (j *JobDescription) Execute(ctx context.Context, call Call) (Result, error) {
	req := strings.TrimSpace(call.Input)
	if req == "" {
		req = strings.TrimSpace(call.Message)
	}
	if req == "" {
		return inBand("No requirements given", "Which role should the job description be for?"), nil
	}

	raw, err := j.oracle.Ask(ctx, writerSystem, fmt.Sprintf(jobDescriptionPrompt, req))
	if err != nil {
		return Result{}, err
	}

	sections, ok := parseSections(raw)
	if !ok {
		text := strings.TrimSpace(llm.StripCodeFence(raw))
		return Result{
			Payload: jsonPayload(map[string]any{"status": "success", "job_description_text": text}),
			Reply:   text,
		}, nil
	}

	doc := make(map[string]json.RawMessage, len(sections))
	for _, s := range sections {
		doc[s.title] = s.body
	}
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "job_description": doc}),
		Reply:   renderSections(sections),
	}, nil
}

type section struct {
	title string
	body  json.RawMessage
}

// parseSections reads a JSON object keeping its key order.
func parseSections(raw string) ([]section, bool) {
	obj, ok := llm.ExtractObject(llm.StripCodeFence(raw))
	if !ok {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(obj))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}

	var out []section
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, false
		}
		out = append(out, section{title: key, body: body})
	}
	return out, len(out) > 0
}

func renderSections(sections []section) string {
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "%s\n%s\n\n", humanize(s.title), renderValue(s.body))
	}
	return strings.TrimSpace(b.String())
}

func renderValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		items := make([]string, 0, len(list))
		for _, it := range list {
			items = append(items, fmt.Sprint(it))
		}
		return strings.TrimSpace(bulletList(items))
	}
	if inner, ok := parseSections(string(raw)); ok {
		var b strings.Builder
		for _, s := range inner {
			fmt.Fprintf(&b, "%s: %s\n", humanize(s.title), renderValue(s.body))
		}
		return strings.TrimSpace(b.String())
	}
	return string(raw)
}

// humanize turns "key_responsibilities" into "Key Responsibilities".
func humanize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
