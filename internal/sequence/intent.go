// Package sequence builds and edits recruiting outreach sequences: the
// guided intake flow, keyword intent detection, model-backed synthesis and
// step repair.
package sequence

import (
	"regexp"
	"sort"
	"strings"
)

// jobTitles is the vocabulary used to spot a role in free text.
var jobTitles = []string{
	"Software Engineer",
	"Senior Software Engineer",
	"Software Developer",
	"Frontend Engineer",
	"Frontend Developer",
	"Backend Engineer",
	"Backend Developer",
	"Full Stack Engineer",
	"Full Stack Developer",
	"Mobile Engineer",
	"iOS Developer",
	"Android Developer",
	"DevOps Engineer",
	"Site Reliability Engineer",
	"Platform Engineer",
	"Security Engineer",
	"QA Engineer",
	"Data Scientist",
	"Data Engineer",
	"Data Analyst",
	"Machine Learning Engineer",
	"ML Engineer",
	"AI Engineer",
	"Engineering Manager",
	"Product Manager",
	"Project Manager",
	"Program Manager",
	"Product Designer",
	"UX Designer",
	"UI Designer",
	"Graphic Designer",
	"Marketing Manager",
	"Content Writer",
	"Sales Representative",
	"Account Executive",
	"Account Manager",
	"Customer Success Manager",
	"Recruiter",
	"HR Manager",
	"Financial Analyst",
	"Accountant",
	"Registered Nurse",
	"Nurse",
	"Teacher",
	"CTO",
	"VP of Engineering",
}

// titleMatchers are tried longest title first so "Senior Software Engineer"
// wins over "Software Engineer".
var titleMatchers = func() []titleMatcher {
	titles := append([]string(nil), jobTitles...)
	sort.SliceStable(titles, func(i, j int) bool { return len(titles[i]) > len(titles[j]) })
	out := make([]titleMatcher, 0, len(titles))
	for _, t := range titles {
		out = append(out, titleMatcher{
			title: t,
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `s?\b`),
		})
	}
	return out
}()

type titleMatcher struct {
	title string
	re    *regexp.Regexp
}

// intentMarkers signal that the user wants a new sequence or campaign.
var intentMarkers = []string{
	"create sequence",
	"create a sequence",
	"create a new sequence",
	"new sequence",
	"build a sequence",
	"generate a sequence",
	"generate sequence",
	"make a sequence",
	"start a sequence",
	"recruiting sequence",
	"recruitment sequence",
	"outreach sequence",
	"hiring sequence",
	"campaign",
}

// fastPathPhrases name a concrete target for the sequence ("... for a
// data scientist").
var fastPathPhrases = []string{
	"sequence for",
	"campaign for",
	"outreach for",
	"outreach to",
	"recruit a",
	"recruit an",
	"hire a",
	"hire an",
	"hiring a",
	"hiring an",
}

// ExtractJobTitle returns the canonical job title mentioned in text.
func ExtractJobTitle(text string) (string, bool) {
	for _, m := range titleMatchers {
		if m.re.MatchString(text) {
			return m.title, true
		}
	}
	return "", false
}

// HasIntent reports whether text asks for a new sequence or campaign.
func HasIntent(text string) bool {
	return containsAny(normalize(text), intentMarkers)
}

// FastPath reports whether text is an unambiguous request to generate a
// sequence for a known role, returning that role.
func FastPath(text string) (string, bool) {
	norm := normalize(text)
	if !containsAny(norm, intentMarkers) || !containsAny(norm, fastPathPhrases) {
		return "", false
	}
	return ExtractJobTitle(text)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
