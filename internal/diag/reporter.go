package diag

import "kiln/internal/source"

// Reporter is the minimal contract for phases that produce diagnostics.
// Implementations: BagReporter (collects into a Bag), NopReporter.
type Reporter interface {
	Report(code Code, sev Severity, primary source.Span, msg string, notes []Note)
}

// BagReporter stores every reported diagnostic in a Bag.
type BagReporter struct {
	Bag *Bag
}

func (r BagReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
		Primary:  primary,
		Notes:    notes,
	})
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, source.Span, string, []Note) {}

// ReportError is a shortcut for SevError diagnostics with no notes.
func ReportError(r Reporter, code Code, primary source.Span, msg string) {
	if r == nil {
		return
	}
	r.Report(code, SevError, primary, msg, nil)
}

// ReportFatal marks an unimplemented ABI corner. The driver treats any
// fatal diagnostic as aborting the whole compilation.
func ReportFatal(r Reporter, code Code, primary source.Span, msg string) {
	if r == nil {
		return
	}
	r.Report(code, SevFatal, primary, msg, nil)
}
