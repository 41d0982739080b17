package validate

import (
	"fmt"

	"sage/core/report"
	"sage/core/spec"
	"sage/core/table"
	"sage/internal/errors"
)

// CheckStructure verifies the input's column shape against the
// catalog's declared fields: count first, then name/order. A failure
// is fatal to the catalog; per-field validation against misaligned
// columns is meaningless.
func CheckStructure(catalog *spec.CatalogSpec, rows *table.RowSet) *errors.Error {
	if len(rows.Columns) != len(catalog.Fields) {
		return errors.Structural(errors.ReasonColumnCountMismatch,
			fmt.Sprintf("expected %d columns, found %d", len(catalog.Fields), len(rows.Columns)))
	}
	for i, field := range catalog.Fields {
		if rows.Columns[i] != field.Name {
			return errors.Structural(errors.ReasonColumnNameMismatch,
				fmt.Sprintf("column %d is %q, expected %q", i+1, rows.Columns[i], field.Name))
		}
	}
	return nil
}

// CheckFields runs the automatic per-field checks in fixed order:
// required for every required field, unique for every unique field,
// then declared-type coercion for every field. Events go to emit in
// that order, field order within each stage, row order within each
// field.
func CheckFields(catalog *spec.CatalogSpec, rows *table.RowSet, coercion Coercion, emit func(report.Event)) {
	for _, field := range catalog.Fields {
		if !field.Required {
			continue
		}
		cells, _ := rows.Column(field.Name)
		for i, cell := range cells {
			if cell.IsMissing() {
				emit(report.Event{
					RuleName:    "required",
					Description: fmt.Sprintf("field %q is required but empty", field.Name),
					Severity:    spec.SeverityError,
					Scope:       report.ScopeField,
					CatalogID:   catalog.ID,
					FieldName:   field.Name,
					RowIndex:    report.Row(i),
				})
			}
		}
	}

	for _, field := range catalog.Fields {
		if !field.Unique {
			continue
		}
		cells, _ := rows.Column(field.Name)
		seen := make(map[string]bool, len(cells))
		for i, cell := range cells {
			if cell.IsMissing() {
				// Absence is the required check's concern
				continue
			}
			if seen[cell.Raw] {
				// First occurrence stays clean; every later duplicate
				// is flagged
				emit(report.Event{
					RuleName:    "unique",
					Description: fmt.Sprintf("field %q repeats value %q", field.Name, cell.Raw),
					Severity:    spec.SeverityError,
					Scope:       report.ScopeField,
					CatalogID:   catalog.ID,
					FieldName:   field.Name,
					RowIndex:    report.Row(i),
				})
				continue
			}
			seen[cell.Raw] = true
		}
	}

	for _, field := range catalog.Fields {
		cells, _ := rows.Column(field.Name)
		for i, cell := range cells {
			if cell.IsMissing() {
				continue
			}
			if err := coercion.Check(field.Type, cell.Raw); err != nil {
				emit(report.Event{
					RuleName:    "type",
					Description: fmt.Sprintf("field %q: %v", field.Name, err),
					Severity:    spec.SeverityError,
					Scope:       report.ScopeField,
					CatalogID:   catalog.ID,
					FieldName:   field.Name,
					RowIndex:    report.Row(i),
				})
			}
		}
	}
}
