package core

import "fmt"

// Severity classifies a diagnostic record
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of Severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// DiagnosticCode identifies what a diagnostic is about.
type DiagnosticCode string

const (
	CodeAutoDefinedModification DiagnosticCode = "AutoDefinedModification"
	CodeMassDisagreement        DiagnosticCode = "MassDisagreement"
	CodeInvalidResidue          DiagnosticCode = "InvalidResidue"
	CodeRecordSkipped           DiagnosticCode = "RecordSkipped"
	CodeFormatUndetermined      DiagnosticCode = "FormatUndetermined"
	CodeCatalogLoadError        DiagnosticCode = "CatalogLoadError"
	CodeFallbackDetection       DiagnosticCode = "FallbackDetection"
)

// Diagnostic is one tagged record on the structured diagnostics channel.
type Diagnostic struct {
	Severity Severity
	Code     DiagnosticCode
	Path     string
	Line     int
	Message  string
	Raw      string

	// Set for CodeAutoDefinedModification
	Modification *ModificationDefinition
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s [%s] %s:%d: %s", d.Severity, d.Code, d.Path, d.Line, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Path, d.Message)
}
