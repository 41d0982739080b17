// Package validate enforces the structural and per-field contract of a
// catalog: column shape, required, unique, and declared-type coercion.
// These checks are implied by the specification format itself and run
// unconditionally; rule authors never write them by hand.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sage/core/spec"
)

// Coercion controls how declared field types accept raw values
type Coercion struct {
	// DateLayouts are accepted fecha layouts, tried in order
	DateLayouts []string

	// TrueTokens and FalseTokens are accepted booleano spellings,
	// compared case-insensitively
	TrueTokens  []string
	FalseTokens []string
}

// DefaultCoercion returns the stock coercion rules
func DefaultCoercion() Coercion {
	return Coercion{
		DateLayouts: []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"},
		TrueTokens:  []string{"true", "1", "si", "sí", "yes", "verdadero"},
		FalseTokens: []string{"false", "0", "no", "falso"},
	}
}

// Check reports whether a raw value is coercible to the declared type.
// The error carries the failing raw value for diagnostics. Empty and
// null values are not type-checked here; required handles absence.
func (c Coercion) Check(fieldType spec.FieldType, raw string) error {
	value := strings.TrimSpace(raw)

	switch fieldType {
	case spec.TypeTexto:
		return nil

	case spec.TypeDecimal:
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Errorf("value %q is not a valid decimal", raw)
		}
		return nil

	case spec.TypeEntero:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("value %q is not a valid integer", raw)
		}
		return nil

	case spec.TypeFecha:
		for _, layout := range c.DateLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return nil
			}
		}
		return fmt.Errorf("value %q is not a valid date", raw)

	case spec.TypeBooleano:
		lowered := strings.ToLower(value)
		for _, tok := range c.TrueTokens {
			if lowered == tok {
				return nil
			}
		}
		for _, tok := range c.FalseTokens {
			if lowered == tok {
				return nil
			}
		}
		return fmt.Errorf("value %q is not a valid boolean", raw)
	}

	return fmt.Errorf("unknown field type %q", fieldType)
}
