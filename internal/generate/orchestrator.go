package generate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"govdraft/internal/ledger"
	"govdraft/internal/section"
	"govdraft/internal/trace"
)

// Policy bounds the per-section calls into the capability.
type Policy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// DefaultPolicy mirrors the shipped defaults: three attempts, ninety
// seconds each, linear backoff.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Timeout: 90 * time.Second, Backoff: 500 * time.Millisecond}
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 90 * time.Second
	}
	return p
}

// attemptOutcome is the typed result of one capability attempt.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeRecoverable
	outcomeExhausted
)

// Orchestrator drafts fill sections strictly sequentially in template
// order. Determinism is a design requirement: no section's generation
// depends on another section concurrently.
type Orchestrator struct {
	capability Capability
	policy     Policy
	tracer     *trace.Collector
	log        *zap.Logger
}

// NewOrchestrator wires a capability with its retry policy and trace sink.
func NewOrchestrator(capability Capability, policy Policy, tracer *trace.Collector, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if tracer == nil {
		tracer = trace.NewCollector(nil)
	}
	return &Orchestrator{capability: capability, policy: policy.normalized(), tracer: tracer, log: log}
}

// Draft generates a draft section for every fillable template section.
// Exhausted sections degrade to a blocked, missing-items-only section; the
// orchestrator never fabricates content.
func (o *Orchestrator) Draft(ctx context.Context, model *section.Model, evidence EvidenceSource, contextItems []section.MissingItem) (*section.Draft, error) {
	answered := ledger.Lookup(contextItems)
	fill := model.FillSections()
	o.log.Info("drafting sections", zap.Int("count", len(fill)))

	d := &section.Draft{}
	for i, sec := range fill {
		req := Request{Section: sec, Context: answered[sec.ID]}
		if evidence != nil {
			req.Evidence = evidence.EvidenceFor(sec, 8)
		}

		o.log.Info("drafting section",
			zap.String("section_id", sec.ID),
			zap.Int("index", i+1),
			zap.Int("total", len(fill)))

		ds := o.draftSection(ctx, req)
		d.Sections = append(d.Sections, *ds)

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("draft run cancelled: %w", err)
		}
	}
	return d, nil
}

// draftSection runs the bounded attempt loop for one section.
func (o *Orchestrator) draftSection(ctx context.Context, req Request) *section.DraftSection {
	sec := req.Section
	var lastErr error

	for attempt := 1; attempt <= o.policy.Attempts; attempt++ {
		started := time.Now()
		ds, err := o.invokeOnce(ctx, req)
		elapsed := time.Since(started)

		outcome := outcomeSuccess
		status := "ok"
		details := ""
		if err != nil {
			outcome = outcomeRecoverable
			if attempt == o.policy.Attempts {
				outcome = outcomeExhausted
			}
			status = "error"
			details = err.Error()
			lastErr = err
		}
		o.tracer.Record(trace.Event{
			Component: "orchestrator",
			Action:    "generate_section",
			Status:    status,
			SectionID: sec.ID,
			Attempt:   attempt,
			Duration:  elapsed.Milliseconds(),
			Details:   details,
		})

		switch outcome {
		case outcomeSuccess:
			return normalizeDraftSection(ds, sec)
		case outcomeRecoverable:
			if o.policy.Backoff > 0 {
				sleepCtx(ctx, time.Duration(attempt)*o.policy.Backoff)
			}
		case outcomeExhausted:
			// fall through to the degraded section below
		}
	}

	o.log.Warn("section generation exhausted",
		zap.String("section_id", sec.ID),
		zap.Error(lastErr))
	return exhaustedSection(sec, lastErr)
}

func (o *Orchestrator) invokeOnce(ctx context.Context, req Request) (*section.DraftSection, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.policy.Timeout)
	defer cancel()
	ds, err := o.capability.GenerateSection(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("capability returned no section")
	}
	return ds, nil
}

// normalizeDraftSection pins the identity fields and enforces the
// evidence-or-missing rule: a section with neither gets an injected missing
// item instead of passing as silently fabricated.
func normalizeDraftSection(ds *section.DraftSection, sec section.Section) *section.DraftSection {
	out := *ds
	out.SectionID = sec.ID
	out.Title = sec.Title
	for i := range out.MissingItems {
		out.MissingItems[i].SectionID = sec.ID
	}

	if len(out.Evidence) == 0 && len(out.MissingItems) == 0 {
		out.MissingItems = []section.MissingItem{{
			ID:        sec.ID + "_missing_info",
			SectionID: sec.ID,
			Question:  "Required information was not found in the codebase evidence.",
		}}
	}
	if len(out.MissingItems) > 0 && out.Status == section.StatusComplete {
		out.Status = section.StatusPartial
	}
	if out.Status == "" {
		out.Status = section.StatusComplete
		if len(out.MissingItems) > 0 {
			out.Status = section.StatusPartial
		}
	}
	if out.Body == "" {
		out.Body = "Information could not be generated from repository evidence."
	}
	return &out
}

// exhaustedSection is the terminal degraded state after retry exhaustion.
func exhaustedSection(sec section.Section, lastErr error) *section.DraftSection {
	question := "Section generation did not complete; provide this content manually."
	if lastErr != nil {
		question = fmt.Sprintf("Section generation failed (%v); provide this content manually.", lastErr)
	}
	return &section.DraftSection{
		SectionID: sec.ID,
		Title:     sec.Title,
		Status:    section.StatusBlocked,
		Body:      "Information could not be generated from repository evidence.",
		MissingItems: []section.MissingItem{{
			ID:        sec.ID + "_generation_failed",
			SectionID: sec.ID,
			Question:  question,
		}},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
