// Package outreach holds the candidate-facing side effects of Helix:
// loading candidate lists, merging them, delivering personalized email and
// drafting LinkedIn messages.
package outreach

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Candidate is one row of candidate data keyed by column name. CSV rows
// hold strings; merged JSON sources may hold any JSON value.
type Candidate map[string]any

// Field returns the value of column name, matched case-insensitively, as a
// string.
func (c Candidate) Field(name string) (string, bool) {
	if v, ok := c[name]; ok {
		return stringify(v), true
	}
	for k, v := range c {
		if strings.EqualFold(k, name) {
			return stringify(v), true
		}
	}
	return "", false
}

// Email returns the candidate's email address, or "" when the row has none.
func (c Candidate) Email() string {
	v, _ := c.Field("email")
	return strings.TrimSpace(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// ErrEmptyCSV is returned for a file without a header row.
var ErrEmptyCSV = errors.New("csv file has no header row")

// LoadCSV reads a candidate file. The first row names the columns; short
// rows are padded with empty values and blank lines are skipped.
func LoadCSV(path string) ([]Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candidates: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses candidates from r. See LoadCSV.
func ReadCSV(r io.Reader) ([]Candidate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var out []Candidate
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		c := make(Candidate, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(rec) {
				c[col] = strings.TrimSpace(rec[i])
			} else {
				c[col] = ""
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Filter keeps candidates whose columns contain every criteria value.
// Column names and values are compared case-insensitively; a criterion on
// a missing column excludes the row.
func Filter(cands []Candidate, criteria map[string]string) []Candidate {
	if len(criteria) == 0 {
		return cands
	}
	var out []Candidate
	for _, c := range cands {
		if matches(c, criteria) {
			out = append(out, c)
		}
	}
	return out
}

func matches(c Candidate, criteria map[string]string) bool {
	for col, want := range criteria {
		got, ok := c.Field(col)
		if !ok {
			return false
		}
		if !strings.Contains(strings.ToLower(got), strings.ToLower(strings.TrimSpace(want))) {
			return false
		}
	}
	return true
}

// Merge concatenates sources and drops repeated email addresses, keeping
// the first occurrence. Rows without an email are always kept.
func Merge(sources ...[]Candidate) []Candidate {
	seen := make(map[string]bool)
	out := []Candidate{}
	for _, src := range sources {
		for _, c := range src {
			email := strings.ToLower(c.Email())
			if email != "" {
				if seen[email] {
					continue
				}
				seen[email] = true
			}
			out = append(out, c)
		}
	}
	return out
}

// Roster caches the most recently loaded candidates per session.
type Roster struct {
	mu        sync.RWMutex
	bySession map[string][]Candidate
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{bySession: make(map[string][]Candidate)}
}

// Set replaces the session's candidates.
func (r *Roster) Set(sessionID string, cands []Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[sessionID] = cands
}

// Get returns the session's candidates.
func (r *Roster) Get(sessionID string) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySession[sessionID]
}
