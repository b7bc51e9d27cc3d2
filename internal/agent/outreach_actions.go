package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/helix/internal/outreach"
)

// LoadCandidates reads candidates from a CSV file into the session roster.
type LoadCandidates struct {
	roster *outreach.Roster
}

// NewLoadCandidates creates the load_csv_candidates action.
func NewLoadCandidates(roster *outreach.Roster) *LoadCandidates {
	return &LoadCandidates{roster: roster}
}

func (l *LoadCandidates) Kind() ActionKind { return ActionLoadCSVCandidates }

func (l *LoadCandidates) Description() string {
	return `Load candidates from a CSV file. Input: the file path, or a JSON string {"path": "...", "criteria": {"column": "value"}}.`
}

type loadInput struct {
	Path     string            `json:"path"`
	Criteria map[string]string `json:"criteria"`
}

func parseLoadInput(s string) loadInput {
	s = strings.TrimSpace(s)
	var in loadInput
	if strings.HasPrefix(s, "{") && json.Unmarshal([]byte(s), &in) == nil {
		return in
	}
	return loadInput{Path: s}
}

func (l *LoadCandidates) Execute(_ context.Context, call Call) (Result, error) {
	in := parseLoadInput(call.Input)
	if in.Path == "" {
		return inBand("No CSV path given", "Which CSV file should I load candidates from?"), nil
	}

	cands, err := outreach.LoadCSV(in.Path)
	if err != nil {
		return inBand(err.Error(), fmt.Sprintf("I couldn't load candidates from %s: %v", in.Path, err)), nil
	}
	if len(in.Criteria) > 0 {
		cands = outreach.Filter(cands, in.Criteria)
	}
	l.roster.Set(call.SessionID, cands)

	msg := fmt.Sprintf("Loaded %d candidates", len(cands))
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "message": msg, "candidates": cands}),
		Reply:   msg + " from " + in.Path + ".",
	}, nil
}

// SendEmail delivers one personalized email through the configured mailer.
type SendEmail struct {
	mailer outreach.Mailer
}

// NewSendEmail creates the send_personalized_email action. mailer may be
// nil when email delivery is disabled.
func NewSendEmail(mailer outreach.Mailer) *SendEmail {
	return &SendEmail{mailer: mailer}
}

func (s *SendEmail) Kind() ActionKind { return ActionSendPersonalizedEmail }

func (s *SendEmail) Description() string {
	return `Send a personalized email to a candidate. Input: a JSON string {"email": "...", "subject": "...", "body": "..."}.`
}

const missingEmailInfo = "Missing required email information or SMTP credentials"

func (s *SendEmail) Execute(ctx context.Context, call Call) (Result, error) {
	var e outreach.Email
	if err := json.Unmarshal([]byte(strings.TrimSpace(call.Input)), &e); err != nil || s.mailer == nil || e.Validate() != nil {
		return inBand(missingEmailInfo, "I need a recipient, subject and body, and email delivery has to be configured, before I can send that."), nil
	}

	if err := s.mailer.Send(ctx, e); err != nil {
		return inBand(err.Error(), fmt.Sprintf("I couldn't send the email to %s: %v", e.To, err)), nil
	}
	msg := "Email sent to " + e.To
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "message": msg}),
		Reply:   msg + ".",
	}, nil
}

// LinkedInMessage drafts a LinkedIn note for a candidate profile.
type LinkedInMessage struct {
	writer *outreach.MessageWriter
}

// NewLinkedInMessage creates the prepare_linkedin_message action.
func NewLinkedInMessage(writer *outreach.MessageWriter) *LinkedInMessage {
	return &LinkedInMessage{writer: writer}
}

func (l *LinkedInMessage) Kind() ActionKind { return ActionPrepareLinkedInMessage }

func (l *LinkedInMessage) Description() string {
	return "Write a personalized LinkedIn message for a candidate. Input: the candidate profile as a JSON string."
}

func (l *LinkedInMessage) Execute(ctx context.Context, call Call) (Result, error) {
	var profile map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(call.Input)), &profile); err != nil || len(profile) == 0 {
		return inBand("Invalid candidate profile", "I need the candidate's profile as JSON to write a LinkedIn message."), nil
	}

	msg, err := l.writer.Write(ctx, profile)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "message": msg}),
		Reply:   msg,
	}, nil
}

// MergeCandidates combines candidate lists, deduplicating by email.
type MergeCandidates struct {
	roster *outreach.Roster
}

// NewMergeCandidates creates the merge_candidate_data action.
func NewMergeCandidates(roster *outreach.Roster) *MergeCandidates {
	return &MergeCandidates{roster: roster}
}

func (m *MergeCandidates) Kind() ActionKind { return ActionMergeCandidateData }

func (m *MergeCandidates) Description() string {
	return "Merge candidate data from several sources, removing duplicates by email. Input: a JSON array of sources, each a candidate array or a CSV path; empty merges the loaded candidates."
}

func (m *MergeCandidates) Execute(_ context.Context, call Call) (Result, error) {
	input := strings.TrimSpace(call.Input)

	var sources [][]outreach.Candidate
	if input == "" || input == "[]" {
		sources = append(sources, m.roster.Get(call.SessionID))
	} else {
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(input), &raw); err != nil {
			return inBand("Input must be a JSON array of sources", "I couldn't read the candidate sources to merge."), nil
		}
		for i, r := range raw {
			src, err := readSource(r)
			if err != nil {
				return inBand(fmt.Sprintf("source %d: %v", i+1, err), fmt.Sprintf("I couldn't read candidate source %d: %v", i+1, err)), nil
			}
			sources = append(sources, src)
		}
	}

	merged := outreach.Merge(sources...)
	m.roster.Set(call.SessionID, merged)

	msg := fmt.Sprintf("Merged %d unique candidates", len(merged))
	return Result{
		Payload: jsonPayload(map[string]any{"status": "success", "message": msg, "candidates": merged}),
		Reply:   msg + ".",
	}, nil
}

func readSource(raw json.RawMessage) ([]outreach.Candidate, error) {
	var path string
	if json.Unmarshal(raw, &path) == nil {
		if !strings.HasSuffix(strings.ToLower(path), ".csv") {
			return nil, fmt.Errorf("unsupported source %q", path)
		}
		return outreach.LoadCSV(path)
	}
	var cands []outreach.Candidate
	if err := json.Unmarshal(raw, &cands); err != nil {
		return nil, errors.New("expected a candidate array or CSV path")
	}
	return cands, nil
}
