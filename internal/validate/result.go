// Package validate checks cell content by language: JSON and YAML parsing
// with optional JSON Schema, markdown diagnostics, and syntax checks for
// code cells. Results are diagnostics; callers decide whether they block.
package validate

// Warning and skip codes.
const (
	CodeSkipped          = "VALIDATION_SKIPPED"
	CodeSchemaRefMissing = "SCHEMA_REFERENCE_MISSING"
)

// Messages shared with callers and tests.
const (
	NotValidatedMessage    = "Validation not performed"
	MarkdownSkippedMessage = "Markdown analysis not available"
	SyntaxSkippedMessage   = "Syntax checker not available for this language"
	plainTextSkippedReason = "Plain text does not require validation"
	schemaStringNotObject  = "JSON schema string must decode to an object"
	schemaWrongType        = "JSON schema must be a mapping or JSON string"
)

// Issue is one error or warning.
type Issue struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Result is the outcome of validating one cell. Valid is false once any
// error has been added; warnings never affect it.
type Result struct {
	CellIndex int            `json:"cell_index"`
	CellID    string         `json:"cell_id,omitempty"`
	Language  string         `json:"language"`
	Valid     bool           `json:"valid"`
	Errors    []Issue        `json:"errors"`
	Warnings  []Issue        `json:"warnings"`
	Details   map[string]any `json:"details,omitempty"`
}

func newResult(index int, cellID, language string) *Result {
	return &Result{
		CellIndex: index,
		CellID:    cellID,
		Language:  language,
		Valid:     true,
		Errors:    []Issue{},
		Warnings:  []Issue{},
	}
}

// AddError records an error and marks the result invalid.
func (r *Result) AddError(message, code string, details map[string]any) {
	r.Errors = append(r.Errors, Issue{Message: message, Code: code, Details: details})
	r.Valid = false
}

// AddWarning records a warning.
func (r *Result) AddWarning(message, code string) {
	r.Warnings = append(r.Warnings, Issue{Message: message, Code: code})
}

// SetDetail sets one result-level detail.
func (r *Result) SetDetail(key string, value any) {
	if r.Details == nil {
		r.Details = make(map[string]any)
	}
	r.Details[key] = value
}

// ErrorMessages returns the messages of every error.
func (r *Result) ErrorMessages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// WarningMessages returns the messages of every warning.
func (r *Result) WarningMessages() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Message
	}
	return out
}
