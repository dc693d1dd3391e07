package index

import (
	"github.com/phobologic/dxrindex/internal/facts"
	"github.com/phobologic/dxrindex/internal/model"
)

// DiagnosticIndexer records warnings as facts while passing every diagnostic
// through to the consumer it wraps.
type DiagnosticIndexer struct {
	ix    *Indexer
	inner model.DiagnosticConsumer

	counts map[model.Level]int
}

// WrapDiagnostics returns a consumer that forwards to inner and records
// warnings through ix. A nil inner discards forwarded diagnostics.
func (ix *Indexer) WrapDiagnostics(inner model.DiagnosticConsumer) *DiagnosticIndexer {
	if inner == nil {
		inner = model.DiscardDiagnostics{}
	}
	return &DiagnosticIndexer{ix: ix, inner: inner, counts: make(map[model.Level]int)}
}

// Install wraps the engine's current client.
func (ix *Indexer) Install(engine *model.DiagnosticsEngine) *DiagnosticIndexer {
	d := ix.WrapDiagnostics(engine.Client())
	engine.SetClient(d)
	return d
}

// Inner returns the wrapped consumer.
func (d *DiagnosticIndexer) Inner() model.DiagnosticConsumer { return d.inner }

// Count returns how many diagnostics of level have been seen.
func (d *DiagnosticIndexer) Count(level model.Level) int { return d.counts[level] }

func (d *DiagnosticIndexer) HandleDiagnostic(level model.Level, diag *model.Diagnostic) {
	d.counts[level]++
	d.inner.HandleDiagnostic(level, diag)

	ix := d.ix
	if level != model.LevelWarning || !ix.interesting(diag.Loc) {
		return
	}

	r := ix.begin(facts.KindWarning, diag.Loc)
	r.Value(facts.KeyLoc, ix.locationString(diag.Loc))
	r.Quoted(facts.KeyMsg, diag.Message)
	if diag.Option != "" {
		r.Value(facts.KeyOpt, "-W"+diag.Option)
	}
	if len(diag.Ranges) > 0 {
		rng := diag.Ranges[0]
		ix.extent(r, ix.unwrapMacro(rng.Begin), ix.unwrapMacro(rng.End))
	} else {
		loc := ix.unwrapMacro(diag.Loc)
		ix.extent(r, loc, loc)
	}
	r.end()
}

// unwrapMacro moves a location out of macro expansions until it names
// literal file text.
func (ix *Indexer) unwrapMacro(loc model.Loc) model.Loc {
	for loc.IsValid() && ix.sm.IsMacroID(loc) {
		if ix.sm.IsMacroArgExpansion(loc) {
			loc = ix.sm.ImmediateSpelling(loc)
		} else {
			loc = ix.sm.ImmediateExpansionStart(loc)
		}
	}
	return loc
}
