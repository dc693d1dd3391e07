package model

// Level is a diagnostic severity.
type Level int

const (
	LevelIgnored Level = iota
	LevelNote
	LevelRemark
	LevelWarning
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelIgnored:
		return "ignored"
	case LevelNote:
		return "note"
	case LevelRemark:
		return "remark"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "unknown"
}

// Range is a source range whose End is the start of its last token.
type Range struct {
	Begin Loc
	End   Loc
}

// Diagnostic is one message produced by the frontend.
type Diagnostic struct {
	Loc     Loc
	Message string
	// Option is the warning flag controlling the diagnostic, without the
	// leading "-W"; empty when there is none.
	Option string
	Ranges []Range
}

// DiagnosticConsumer receives every diagnostic the frontend reports.
type DiagnosticConsumer interface {
	HandleDiagnostic(level Level, d *Diagnostic)
}

// DiagnosticsEngine routes reported diagnostics to its current client.
type DiagnosticsEngine struct {
	client DiagnosticConsumer
}

// NewDiagnosticsEngine returns an engine reporting to client.
func NewDiagnosticsEngine(client DiagnosticConsumer) *DiagnosticsEngine {
	return &DiagnosticsEngine{client: client}
}

// Client returns the installed consumer.
func (e *DiagnosticsEngine) Client() DiagnosticConsumer { return e.client }

// SetClient replaces the installed consumer.
func (e *DiagnosticsEngine) SetClient(c DiagnosticConsumer) { e.client = c }

// Report delivers d to the current client, if any.
func (e *DiagnosticsEngine) Report(level Level, d *Diagnostic) {
	if e.client != nil {
		e.client.HandleDiagnostic(level, d)
	}
}

// DiscardDiagnostics is a consumer that drops everything.
type DiscardDiagnostics struct{}

func (DiscardDiagnostics) HandleDiagnostic(Level, *Diagnostic) {}
