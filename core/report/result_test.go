package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/core/spec"
)

func TestResultCounts(t *testing.T) {
	r := New()
	assert.NotEmpty(t, r.ExecutionID)
	assert.Equal(t, StatusPassed, r.Status())

	r.Append(Event{RuleName: "r1", Severity: spec.SeverityWarning, Scope: ScopeRow})
	assert.Equal(t, StatusPassed, r.Status(), "warnings never fail a run")

	r.Append(Event{RuleName: "r2", Severity: spec.SeverityError, Scope: ScopeField})
	r.Append(Event{RuleName: "r3", Severity: spec.SeverityError, Scope: ScopeCatalog})

	assert.Equal(t, 2, r.ErrorCount())
	assert.Equal(t, 1, r.WarningCount())
	assert.Equal(t, StatusFailed, r.Status())
}

func TestResultAppendStampsTimestamp(t *testing.T) {
	r := New()
	r.Append(Event{RuleName: "r1", Severity: spec.SeverityError})
	assert.False(t, r.Events[0].Timestamp.IsZero())
}

func TestEnvelopeJSON(t *testing.T) {
	r := New()
	r.Append(Event{
		RuleName:  "monto_positivo",
		Severity:  spec.SeverityError,
		Scope:     ScopeRow,
		CatalogID: "ventas",
		RowIndex:  Row(3),
	})
	r.Finish()

	data, err := json.Marshal(r.Envelope())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.ExecutionID, decoded["execution_uuid"])
	assert.Equal(t, float64(1), decoded["errors"])
	assert.Equal(t, "Failed", decoded["status"])

	events := decoded["events"].([]interface{})
	require.Len(t, events, 1)
	event := events[0].(map[string]interface{})
	assert.Equal(t, "monto_positivo", event["rule_name"])
	assert.Equal(t, float64(3), event["row_index"])
}

func TestJSONFormatter(t *testing.T) {
	f, err := NewFormatter(FormatJSON, true)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f.Format())

	r := New()
	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf, r))

	var decoded Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.ExecutionID, decoded.ExecutionUUID)
	assert.Equal(t, StatusPassed, decoded.Status)
}

func TestCLIFormatter(t *testing.T) {
	r := New()
	r.Append(Event{
		RuleName:    "required",
		Description: `field "codigo" is required but empty`,
		Severity:    spec.SeverityError,
		Scope:       ScopeField,
		CatalogID:   "clientes",
		FieldName:   "codigo",
		RowIndex:    Row(1),
	})

	f, err := NewFormatter(FormatCLI, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf, r))
	out := buf.String()
	assert.Contains(t, out, r.ExecutionID)
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "clientes.codigo row 1")

	// Without events only the summary line remains
	f, err = NewFormatter(FormatCLI, false)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, f.Render(&buf, r))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNewFormatterUnknown(t *testing.T) {
	_, err := NewFormatter("xml", false)
	assert.Error(t, err)
}
