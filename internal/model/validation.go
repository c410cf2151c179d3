package model

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one itemized validation observation. Field is a dotted path
// into the document; Rule identifies the check that produced it.
type Finding struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Rule     string   `json:"rule"`
}

// ValidationResult is immutable once returned by the validator: Valid is
// true iff no finding carries error severity.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Findings []Finding `json:"findings"`
}

func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, Findings: []Finding{}}
}

func (r *ValidationResult) AddError(field, rule, message string) {
	r.Valid = false
	r.Findings = append(r.Findings, Finding{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
		Rule:     rule,
	})
}

func (r *ValidationResult) AddWarning(field, rule, message string) {
	r.Findings = append(r.Findings, Finding{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
		Rule:     rule,
	})
}

// AddFindings appends pre-built findings, demoting Valid on any error.
func (r *ValidationResult) AddFindings(findings ...Finding) {
	for _, f := range findings {
		if f.Severity == SeverityError {
			r.Valid = false
		}
	}
	r.Findings = append(r.Findings, findings...)
}

// Merge appends another result's findings, demoting Valid if needed.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Findings = append(r.Findings, other.Findings...)
	if !other.Valid {
		r.Valid = false
	}
}

func (r *ValidationResult) ErrorCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *ValidationResult) WarningCount() int {
	return len(r.Findings) - r.ErrorCount()
}
