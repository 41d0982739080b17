// Package report accumulates validation events into the structured
// result consumed by external reporting and notification collaborators.
package report

import (
	"time"

	"github.com/google/uuid"

	"sage/core/spec"
)

// Scope identifies which validation stage produced an event
type Scope string

const (
	ScopeStructural Scope = "structural"
	ScopeField      Scope = "field"
	ScopeRow        Scope = "row"
	ScopeCatalog    Scope = "catalog"
	ScopePackage    Scope = "package"
)

// Status is the overall verdict of a run
type Status string

const (
	// StatusPassed means no error-severity events were recorded
	StatusPassed Status = "Passed"

	// StatusFailed means at least one error-severity event was recorded
	StatusFailed Status = "Failed"
)

// Event is one recorded validation outcome. RowIndex is nil for
// aggregate scopes.
type Event struct {
	RuleName    string        `json:"rule_name"`
	Description string        `json:"description"`
	Severity    spec.Severity `json:"severity"`
	Scope       Scope         `json:"scope"`
	CatalogID   string        `json:"catalog_id,omitempty"`
	FieldName   string        `json:"field_name,omitempty"`
	RowIndex    *int          `json:"row_index,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Row is a convenience constructor for a row-index pointer
func Row(i int) *int {
	return &i
}

// Result is the product of one validation run. It is owned by the
// orchestrator until returned; events keep insertion order, which is
// evaluation order.
type Result struct {
	ExecutionID string    `json:"execution_uuid"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Events      []Event   `json:"events"`
}

// New creates a result for a fresh run
func New() *Result {
	return &Result{
		ExecutionID: uuid.NewString(),
		StartedAt:   time.Now().UTC(),
	}
}

// Append records one event, stamping it if the producer did not
func (r *Result) Append(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	r.Events = append(r.Events, e)
}

// Finish marks the run complete
func (r *Result) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// ErrorCount counts error-severity events
func (r *Result) ErrorCount() int {
	n := 0
	for _, e := range r.Events {
		if e.Severity == spec.SeverityError {
			n++
		}
	}
	return n
}

// WarningCount counts warning-severity events
func (r *Result) WarningCount() int {
	n := 0
	for _, e := range r.Events {
		if e.Severity == spec.SeverityWarning {
			n++
		}
	}
	return n
}

// Status is Failed iff at least one error was recorded; warnings never
// affect the verdict
func (r *Result) Status() Status {
	if r.ErrorCount() > 0 {
		return StatusFailed
	}
	return StatusPassed
}

// Envelope is the minimal serialized form external callers persist
type Envelope struct {
	ExecutionUUID string  `json:"execution_uuid"`
	Errors        int     `json:"errors"`
	Warnings      int     `json:"warnings"`
	Status        Status  `json:"status"`
	Events        []Event `json:"events,omitempty"`
}

// Envelope derives the serialized form, including the full event list
func (r *Result) Envelope() Envelope {
	return Envelope{
		ExecutionUUID: r.ExecutionID,
		Errors:        r.ErrorCount(),
		Warnings:      r.WarningCount(),
		Status:        r.Status(),
		Events:        r.Events,
	}
}
