// Package engine drives the validation pipeline: structural checks,
// then field-level checks, then row rules, then catalog rules, then
// package rules, aggregating events with deterministic ordering.
//
// The pipeline is synchronous and single-pass. One catalog's
// structural failure aborts that catalog's later stages only; the run
// always reaches Done.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sage/core/expression"
	"sage/core/report"
	"sage/core/spec"
	"sage/core/table"
	"sage/core/validate"
	"sage/internal/errors"
)

// Phase represents execution stages within one run
type Phase int

const (
	PhaseInit Phase = iota
	PhaseStructural
	PhaseFields
	PhaseRowRules
	PhaseCatalogRules
	PhasePackageRules
	PhaseDone
)

// String returns the phase name
func (p Phase) String() string {
	names := []string{
		"init", "structural", "fields", "row_rules",
		"catalog_rules", "package_rules", "done",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// Validator runs one specification against catalog inputs. It holds
// no per-run state, so one Validator may serve concurrent runs.
type Validator struct {
	spec     *spec.Specification
	coercion validate.Coercion
	log      *zap.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// WithCoercion overrides the type-coercion rules
func WithCoercion(c validate.Coercion) Option {
	return func(v *Validator) { v.coercion = c }
}

// New creates a validator for a parsed specification
func New(s *spec.Specification, opts ...Option) *Validator {
	v := &Validator{
		spec:     s,
		coercion: validate.DefaultCoercion(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full pipeline over the supplied row-sets and
// returns the accumulated result. Data-quality findings never surface
// as an error; the error return covers only caller mistakes and
// context cancellation.
func (v *Validator) Validate(ctx context.Context, inputs map[string]*table.RowSet) (*report.Result, error) {
	if v.spec == nil {
		return nil, errors.Input("nil specification")
	}

	result := report.New()
	log := v.log.With(zap.String("execution", result.ExecutionID))
	log.Info("validation started",
		zap.Int("catalogs", len(v.spec.Catalogs)),
		zap.Int("packages", len(v.spec.Packages)))

	// Catalogs whose later stages were skipped by a structural failure
	aborted := make(map[string]bool)

	for _, catalog := range v.spec.Catalogs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindInput, "", "validation canceled", err)
		}
		v.runCatalog(catalog, inputs[catalog.ID], result, aborted, log)
	}

	for _, pkg := range v.spec.Packages {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindInput, "", "validation canceled", err)
		}
		v.runPackage(pkg, inputs, result, aborted, log)
	}

	result.Finish()
	log.Info("validation finished",
		zap.Int("errors", result.ErrorCount()),
		zap.Int("warnings", result.WarningCount()),
		zap.String("status", string(result.Status())))
	return result, nil
}

func (v *Validator) runCatalog(catalog *spec.CatalogSpec, rows *table.RowSet, result *report.Result, aborted map[string]bool, log *zap.Logger) {
	clog := log.With(zap.String("catalog", catalog.ID))

	if rows == nil {
		aborted[catalog.ID] = true
		result.Append(report.Event{
			RuleName:    "input",
			Description: fmt.Sprintf("catalog %q: no input provided", catalog.ID),
			Severity:    spec.SeverityError,
			Scope:       report.ScopeStructural,
			CatalogID:   catalog.ID,
		})
		clog.Warn("catalog skipped, no input")
		return
	}

	clog.Debug("phase", zap.Stringer("phase", PhaseStructural))
	if serr := validate.CheckStructure(catalog, rows); serr != nil {
		aborted[catalog.ID] = true
		result.Append(report.Event{
			RuleName:    structuralRuleName(serr),
			Description: serr.Message,
			Severity:    spec.SeverityError,
			Scope:       report.ScopeStructural,
			CatalogID:   catalog.ID,
		})
		clog.Warn("catalog aborted", zap.String("reason", string(errors.ReasonOf(serr))))
		return
	}

	clog.Debug("phase", zap.Stringer("phase", PhaseFields))
	validate.CheckFields(catalog, rows, v.coercion, result.Append)

	evalCtx := &expression.Context{
		Catalogs:    map[string]*table.RowSet{catalog.ID: rows},
		Current:     catalog.ID,
		DateLayouts: v.coercion.DateLayouts,
	}

	clog.Debug("phase", zap.Stringer("phase", PhaseRowRules))
	for _, field := range catalog.Fields {
		for _, rule := range field.ValidationRules {
			v.runRowRule(rule, catalog.ID, field.Name, evalCtx, rows.Len(), result, clog)
		}
	}
	for _, rule := range catalog.RowValidations {
		v.runRowRule(rule, catalog.ID, "", evalCtx, rows.Len(), result, clog)
	}

	clog.Debug("phase", zap.Stringer("phase", PhaseCatalogRules))
	for _, rule := range catalog.CatalogValidations {
		v.runAggregateRule(rule, report.ScopeCatalog, catalog.ID, evalCtx, result, clog)
	}
}

func (v *Validator) runPackage(pkg *spec.PackageSpec, inputs map[string]*table.RowSet, result *report.Result, aborted map[string]bool, log *zap.Logger) {
	plog := log.With(zap.String("package", pkg.ID))
	plog.Debug("phase", zap.Stringer("phase", PhasePackageRules))

	catalogs := make(map[string]*table.RowSet, len(pkg.Catalogs))
	for _, id := range pkg.Catalogs {
		if !aborted[id] {
			catalogs[id] = inputs[id]
		}
	}
	evalCtx := &expression.Context{Catalogs: catalogs, DateLayouts: v.coercion.DateLayouts}

	for _, rule := range pkg.PackageValidations {
		compiled, err := expression.Compile(rule.Expression)
		if err != nil {
			result.Append(expressionEvent(rule, report.ScopePackage, pkg.ID, err))
			continue
		}

		// A rule over a structurally invalid catalog is skipped; its
		// verdict would be meaningless
		if dep := abortedDependency(compiled, pkg, aborted); dep != "" {
			result.Append(report.Event{
				RuleName:    rule.Name,
				Description: "dependent catalog structurally invalid",
				Severity:    spec.SeverityError,
				Scope:       report.ScopePackage,
				CatalogID:   pkg.ID,
			})
			plog.Warn("package rule skipped", zap.String("rule", rule.Name), zap.String("catalog", dep))
			continue
		}

		v.runCompiledAggregate(compiled, rule, report.ScopePackage, pkg.ID, evalCtx, result, plog)
	}
}

func abortedDependency(compiled *expression.Compiled, pkg *spec.PackageSpec, aborted map[string]bool) string {
	refs := compiled.ReferencedCatalogs()
	if len(refs) == 0 {
		// No qualified references: the rule depends on the whole package
		refs = pkg.Catalogs
	}
	for _, id := range refs {
		if aborted[id] {
			return id
		}
	}
	return ""
}

// runRowRule evaluates one row-scope rule: every violating row yields
// one event at the rule's declared severity
func (v *Validator) runRowRule(rule spec.Rule, catalogID, fieldName string, evalCtx *expression.Context, rowCount int, result *report.Result, log *zap.Logger) {
	verdicts, err := v.evalRows(rule, evalCtx)
	if err != nil {
		result.Append(expressionEvent(rule, report.ScopeRow, catalogID, err))
		log.Warn("rule failed to evaluate", zap.String("rule", rule.Name), zap.Error(err))
		return
	}
	for i := 0; i < rowCount; i++ {
		if verdicts[i] {
			continue
		}
		result.Append(report.Event{
			RuleName:    rule.Name,
			Description: rule.Description,
			Severity:    rule.Severity,
			Scope:       report.ScopeRow,
			CatalogID:   catalogID,
			FieldName:   fieldName,
			RowIndex:    report.Row(i),
		})
	}
}

func (v *Validator) runAggregateRule(rule spec.Rule, scope report.Scope, ownerID string, evalCtx *expression.Context, result *report.Result, log *zap.Logger) {
	compiled, err := expression.Compile(rule.Expression)
	if err != nil {
		result.Append(expressionEvent(rule, scope, ownerID, err))
		log.Warn("rule failed to compile", zap.String("rule", rule.Name), zap.Error(err))
		return
	}
	v.runCompiledAggregate(compiled, rule, scope, ownerID, evalCtx, result, log)
}

func (v *Validator) runCompiledAggregate(compiled *expression.Compiled, rule spec.Rule, scope report.Scope, ownerID string, evalCtx *expression.Context, result *report.Result, log *zap.Logger) {
	passed, err := v.evalAggregate(compiled, evalCtx)
	if err != nil {
		result.Append(expressionEvent(rule, scope, ownerID, err))
		log.Warn("rule failed to evaluate", zap.String("rule", rule.Name), zap.Error(err))
		return
	}
	if !passed {
		result.Append(report.Event{
			RuleName:    rule.Name,
			Description: rule.Description,
			Severity:    rule.Severity,
			Scope:       scope,
			CatalogID:   ownerID,
		})
	}
}

// evalRows isolates one rule evaluation; a panic inside the evaluator
// must not abort the run
func (v *Validator) evalRows(rule spec.Rule, evalCtx *expression.Context) (verdicts []bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Expressionf(errors.ReasonTypeMismatch, "rule evaluation panicked: %v", r)
		}
	}()
	compiled, err := expression.Compile(rule.Expression)
	if err != nil {
		return nil, err
	}
	return compiled.EvalRows(evalCtx)
}

func (v *Validator) evalAggregate(compiled *expression.Compiled, evalCtx *expression.Context) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Expressionf(errors.ReasonTypeMismatch, "rule evaluation panicked: %v", r)
		}
	}()
	return compiled.EvalAggregate(evalCtx)
}

// expressionEvent converts a broken rule into an error-severity event:
// a rule that cannot run must not silently pass
func expressionEvent(rule spec.Rule, scope report.Scope, ownerID string, err error) report.Event {
	return report.Event{
		RuleName:    rule.Name,
		Description: fmt.Sprintf("rule %q failed to evaluate: %v", rule.Name, err),
		Severity:    spec.SeverityError,
		Scope:       scope,
		CatalogID:   ownerID,
	}
}

func structuralRuleName(err *errors.Error) string {
	switch err.Reason {
	case errors.ReasonColumnCountMismatch:
		return "column_count"
	case errors.ReasonColumnNameMismatch:
		return "column_order"
	default:
		return "structure"
	}
}
