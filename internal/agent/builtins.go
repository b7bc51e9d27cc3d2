package agent

import (
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/outreach"
	"github.com/soyeahso/helix/internal/sequence"
)

// Builtins bundles what the built-in actions depend on.
type Builtins struct {
	Oracle      sequence.Oracle
	Synthesizer *sequence.Synthesizer
	Book        *sequence.Book
	Roster      *outreach.Roster
	Mailer      outreach.Mailer // nil disables sending
	GuidedFlow  bool
	Log         *logging.Logger
}

// RegisterBuiltins registers the ten built-in actions and returns the
// generate_sequence action, which also completes guided intakes.
func RegisterBuiltins(r *Registry, b Builtins) *GenerateSequence {
	gen := NewGenerateSequence(b.Synthesizer, b.Book, b.GuidedFlow, b.Log)

	r.Register(ClarifyingQuestion{})
	r.Register(gen)
	r.Register(NewEditSequenceStep(b.Book))
	r.Register(NewModifySequence(b.Synthesizer, b.Book))
	r.Register(NewProvideFeedback(b.Oracle, b.Book))
	r.Register(NewJobDescription(b.Oracle))
	r.Register(NewLoadCandidates(b.Roster))
	r.Register(NewSendEmail(b.Mailer))
	r.Register(NewLinkedInMessage(outreach.NewMessageWriter(b.Oracle)))
	r.Register(NewMergeCandidates(b.Roster))
	return gen
}
