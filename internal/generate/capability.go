// Package generate sequences per-section content generation. The actual
// content producer is an injected capability; the orchestrator only owns
// ordering, retry/timeout policy, and the degradation path when a provider
// is exhausted.
package generate

import (
	"context"

	"govdraft/internal/section"
)

// Request carries everything a capability may use for one section: the
// template section, evidence excerpts from the codebase, and any answered
// context the human supplied in the ledger.
type Request struct {
	Section  section.Section
	Evidence []string
	Context  string
}

// Capability is the external content producer. Implementations must return
// either a draft section or an error; the orchestrator never depends on
// provider identity.
type Capability interface {
	GenerateSection(ctx context.Context, req Request) (*section.DraftSection, error)
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, req Request) (*section.DraftSection, error)

func (f CapabilityFunc) GenerateSection(ctx context.Context, req Request) (*section.DraftSection, error) {
	return f(ctx, req)
}

// EvidenceSource supplies evidence excerpts for a section. The repository
// index implements this; tests inject fakes.
type EvidenceSource interface {
	EvidenceFor(sec section.Section, limit int) []string
}
