package expression

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sage/core/table"
	"sage/internal/errors"
)

// DefaultDateLayouts are tried in order by to_datetime when the
// context does not override them
var DefaultDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}

// Context supplies the row-sets an expression may reference. The
// evaluator never mutates them.
type Context struct {
	// Catalogs maps catalog identifiers to their row-sets; qualified
	// references (df['catalog']['column']) resolve here
	Catalogs map[string]*table.RowSet

	// Current is the catalog unqualified column references resolve
	// against; empty at package scope
	Current string

	// DateLayouts overrides the accepted to_datetime layouts
	DateLayouts []string
}

func (ctx *Context) current() *table.RowSet {
	if ctx.Current == "" {
		return nil
	}
	return ctx.Catalogs[ctx.Current]
}

func (ctx *Context) layouts() []string {
	if len(ctx.DateLayouts) > 0 {
		return ctx.DateLayouts
	}
	return DefaultDateLayouts
}

// result is either one scalar or a row-aligned series
type result struct {
	scalar   Value
	series   []Value
	isSeries bool
}

func scalarResult(v Value) result {
	return result{scalar: v}
}

func seriesResult(vs []Value) result {
	return result{series: vs, isSeries: true}
}

func (r result) length() int {
	if r.isSeries {
		return len(r.series)
	}
	return 1
}

func (r result) at(i int) Value {
	if r.isSeries {
		return r.series[i]
	}
	return r.scalar
}

// binding resolves a lambda parameter during apply
type binding struct {
	// rows is set for frame application; the parameter names one row
	rows   *table.RowSet
	rowIdx int

	// cell is set for column application
	cell    Value
	perCell bool
}

type env struct {
	ctx      *Context
	bindings map[string]binding
}

// EvalRows evaluates a row-scope rule: one boolean per row of the
// current catalog, true meaning the rule is satisfied. Null or
// coercion-failed operands materialize as not satisfied.
func (c *Compiled) EvalRows(ctx *Context) ([]bool, error) {
	rs := ctx.current()
	if rs == nil {
		return nil, errors.Expressionf(errors.ReasonTypeMismatch, "no current catalog for row-scope evaluation")
	}

	res, err := c.eval(&env{ctx: ctx})
	if err != nil {
		return nil, err
	}

	out := make([]bool, rs.Len())
	if !res.isSeries {
		// A scalar verdict broadcasts across all rows
		b, err := materializeBool(res.scalar, c.src)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = b
		}
		return out, nil
	}

	if len(res.series) != rs.Len() {
		return nil, errors.Expressionf(errors.ReasonTypeMismatch,
			"expression yields %d values for %d rows", len(res.series), rs.Len())
	}
	for i, v := range res.series {
		b, err := materializeBool(v, c.src)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// EvalAggregate evaluates a catalog- or package-scope rule to a single
// verdict. A series result passes only when every row passes.
func (c *Compiled) EvalAggregate(ctx *Context) (bool, error) {
	res, err := c.eval(&env{ctx: ctx})
	if err != nil {
		return false, err
	}
	if !res.isSeries {
		return materializeBool(res.scalar, c.src)
	}
	for _, v := range res.series {
		b, err := materializeBool(v, c.src)
		if err != nil {
			return false, err
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func materializeBool(v Value, src string) (bool, error) {
	if b, ok := v.AsBool(); ok {
		return b, nil
	}
	if v.IsVoid() {
		return false, nil
	}
	return false, errors.Expressionf(errors.ReasonTypeMismatch,
		"expression %q yields %s, not a boolean", src, v.Kind())
}

func (c *Compiled) eval(e *env) (result, error) {
	return evalNode(c.root, e)
}

func evalNode(n node, e *env) (result, error) {
	switch nd := n.(type) {
	case litNode:
		return scalarResult(nd.val), nil

	case listNode:
		return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "a list literal is only valid inside isin")

	case colNode:
		return evalColumn(nd, e)

	case frameNode:
		return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "a frame reference is only valid as an apply target")

	case paramNode:
		b, ok := e.bindings[nd.param]
		if !ok || b.rows == nil {
			return result{}, errors.Expressionf(errors.ReasonParseError, "unbound parameter %q", nd.param)
		}
		idx := b.rows.ColumnIndex(nd.column)
		if idx < 0 {
			return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "unknown column %q", nd.column)
		}
		return scalarResult(cellValue(b.rows.Rows[b.rowIdx][idx])), nil

	case paramValueNode:
		b, ok := e.bindings[nd.param]
		if !ok || !b.perCell {
			return result{}, errors.Expressionf(errors.ReasonParseError, "unbound parameter %q", nd.param)
		}
		return scalarResult(b.cell), nil

	case binaryNode:
		return evalBinary(nd, e)

	case notNode:
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			if v.IsVoid() {
				return Null(), nil
			}
			b, ok := v.AsBool()
			if !ok {
				return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "~ applied to %s", v.Kind())
			}
			return Bool(!b), nil
		})

	case negNode:
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			if v.IsVoid() {
				return v, nil
			}
			num, ok := v.AsNumber()
			if !ok {
				return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "unary minus applied to %s", v.Kind())
			}
			return Number(num.Neg()), nil
		})

	case castNode:
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			return castValue(v, nd.toInt)
		})

	case strNode:
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			if v.IsVoid() {
				return Null(), nil
			}
			s, ok := v.AsString()
			if !ok {
				return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "str predicate applied to %s", v.Kind())
			}
			return Bool(nd.re.MatchString(s)), nil
		})

	case nullNode:
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			if nd.notNull {
				return Bool(!v.IsVoid()), nil
			}
			return Bool(v.IsVoid()), nil
		})

	case sumNode:
		return evalSum(nd, e)

	case betweenNode:
		return evalBetween(nd, e)

	case isinNode:
		return evalIsin(nd, e)

	case datetimeNode:
		layouts := e.ctx.layouts()
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			return toDatetime(v, layouts)
		})

	case dateFieldNode:
		return mapUnary(nd.expr, e, func(v Value) (Value, error) {
			if v.IsVoid() {
				return v, nil
			}
			t, ok := v.AsTime()
			if !ok {
				return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "dt.%s applied to %s", nd.field, v.Kind())
			}
			switch nd.field {
			case "year":
				return NumberFromInt(int64(t.Year())), nil
			case "month":
				return NumberFromInt(int64(t.Month())), nil
			default:
				return NumberFromInt(int64(t.Day())), nil
			}
		})

	case applyNode:
		return evalApply(nd, e)
	}

	return result{}, errors.Expressionf(errors.ReasonParseError, "unsupported expression node")
}

// cellValue lifts a raw cell into the value domain. Empty cells count
// as null: CSV has no other way to write a missing value.
func cellValue(c table.Cell) Value {
	if c.IsMissing() {
		return Null()
	}
	return String(c.Raw)
}

func evalColumn(nd colNode, e *env) (result, error) {
	if len(nd.keys) == 2 {
		rs, ok := e.ctx.Catalogs[nd.keys[0]]
		if !ok {
			return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "unknown catalog %q", nd.keys[0])
		}
		return columnSeries(rs, nd.keys[1])
	}

	rs := e.ctx.current()
	if rs == nil {
		return result{}, errors.Expressionf(errors.ReasonTypeMismatch,
			"unqualified column %q outside a catalog scope", nd.keys[0])
	}
	return columnSeries(rs, nd.keys[0])
}

func columnSeries(rs *table.RowSet, column string) (result, error) {
	cells, ok := rs.Column(column)
	if !ok {
		return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "unknown column %q", column)
	}
	vs := make([]Value, len(cells))
	for i, c := range cells {
		vs[i] = cellValue(c)
	}
	return seriesResult(vs), nil
}

// mapUnary applies fn element-wise over the operand
func mapUnary(expr node, e *env, fn func(Value) (Value, error)) (result, error) {
	operand, err := evalNode(expr, e)
	if err != nil {
		return result{}, err
	}
	return mapResult(operand, fn)
}

func evalBinary(nd binaryNode, e *env) (result, error) {
	left, err := evalNode(nd.left, e)
	if err != nil {
		return result{}, err
	}
	right, err := evalNode(nd.right, e)
	if err != nil {
		return result{}, err
	}
	return zip(left, right, func(l, r Value) (Value, error) {
		return applyBinary(nd.op, l, r)
	})
}

// zip combines two results element-wise, broadcasting scalars. Two
// series of different lengths cannot be combined; isin is the
// supported way to relate catalogs of different cardinality.
func zip(left, right result, fn func(l, r Value) (Value, error)) (result, error) {
	if !left.isSeries && !right.isSeries {
		v, err := fn(left.scalar, right.scalar)
		if err != nil {
			return result{}, err
		}
		return scalarResult(v), nil
	}
	if left.isSeries && right.isSeries && len(left.series) != len(right.series) {
		return result{}, errors.Expressionf(errors.ReasonTypeMismatch,
			"cannot combine series of %d and %d rows", len(left.series), len(right.series))
	}
	n := left.length()
	if right.isSeries {
		n = right.length()
	}
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		v, err := fn(left.at(i), right.at(i))
		if err != nil {
			return result{}, err
		}
		out[i] = v
	}
	return seriesResult(out), nil
}

func applyBinary(op binaryOp, l, r Value) (Value, error) {
	switch op {
	case opAnd, opOr:
		// Both operands are always evaluated; a void operand counts as
		// not satisfied for that row
		lb, err := combinatorBool(l)
		if err != nil {
			return Value{}, err
		}
		rb, err := combinatorBool(r)
		if err != nil {
			return Value{}, err
		}
		if op == opAnd {
			return Bool(lb && rb), nil
		}
		return Bool(lb || rb), nil

	case opEQ:
		return l.Equals(r), nil
	case opNE:
		eq := l.Equals(r)
		if b, ok := eq.AsBool(); ok {
			return Bool(!b), nil
		}
		return eq, nil

	case opGT, opLT, opGE, opLE:
		if l.IsVoid() || r.IsVoid() {
			return Null(), nil
		}
		cmp, err := l.Compare(r)
		if err != nil {
			return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "%v", err)
		}
		switch op {
		case opGT:
			return Bool(cmp > 0), nil
		case opLT:
			return Bool(cmp < 0), nil
		case opGE:
			return Bool(cmp >= 0), nil
		default:
			return Bool(cmp <= 0), nil
		}

	default:
		return arithmetic(op, l, r)
	}
}

func combinatorBool(v Value) (bool, error) {
	if v.IsVoid() {
		return false, nil
	}
	b, ok := v.AsBool()
	if !ok {
		return false, errors.Expressionf(errors.ReasonTypeMismatch, "boolean combinator applied to %s", v.Kind())
	}
	return b, nil
}

func arithmetic(op binaryOp, l, r Value) (Value, error) {
	if l.IsVoid() || r.IsVoid() {
		return Null(), nil
	}
	ln, lok := l.AsNumber()
	rn, rok := r.AsNumber()
	if !lok || !rok {
		return Value{}, errors.Expressionf(errors.ReasonTypeMismatch,
			"arithmetic over %s and %s (apply astype first)", l.Kind(), r.Kind())
	}
	switch op {
	case opAdd:
		return Number(ln.Add(rn)), nil
	case opSub:
		return Number(ln.Sub(rn)), nil
	case opMul:
		return Number(ln.Mul(rn)), nil
	case opDiv:
		if rn.IsZero() {
			return Invalid(), nil
		}
		return Number(ln.Div(rn)), nil
	}
	return Value{}, errors.Expressionf(errors.ReasonParseError, "unsupported arithmetic operator")
}

func castValue(v Value, toInt bool) (Value, error) {
	switch v.Kind() {
	case KindNull, KindInvalid:
		return v, nil
	case KindNumber:
		if toInt {
			num, _ := v.AsNumber()
			return Number(num.Truncate(0)), nil
		}
		return v, nil
	case KindBool:
		b, _ := v.AsBool()
		if b {
			return NumberFromInt(1), nil
		}
		return NumberFromInt(0), nil
	case KindString:
		s, _ := v.AsString()
		num, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return Invalid(), nil
		}
		if toInt {
			if !num.Equal(num.Truncate(0)) {
				return Invalid(), nil
			}
		}
		return Number(num), nil
	}
	return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "astype applied to %s", v.Kind())
}

func toDatetime(v Value, layouts []string) (Value, error) {
	switch v.Kind() {
	case KindNull, KindInvalid, KindTime:
		return v, nil
	case KindString:
		s, _ := v.AsString()
		s = strings.TrimSpace(s)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Time(t), nil
			}
		}
		return Invalid(), nil
	}
	return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "to_datetime applied to %s", v.Kind())
}

func evalSum(nd sumNode, e *env) (result, error) {
	operand, err := evalNode(nd.expr, e)
	if err != nil {
		return result{}, err
	}
	total := decimal.Zero
	for i := 0; i < operand.length(); i++ {
		v := operand.at(i)
		if v.IsVoid() {
			// Missing values do not contribute to the sum
			continue
		}
		num, ok := v.AsNumber()
		if !ok {
			return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "sum over %s (apply astype first)", v.Kind())
		}
		total = total.Add(num)
	}
	return scalarResult(Number(total)), nil
}

func evalBetween(nd betweenNode, e *env) (result, error) {
	low, err := evalNode(nd.low, e)
	if err != nil {
		return result{}, err
	}
	high, err := evalNode(nd.high, e)
	if err != nil {
		return result{}, err
	}
	if low.isSeries || high.isSeries {
		return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "between bounds must be scalars")
	}
	return mapUnary(nd.expr, e, func(v Value) (Value, error) {
		if v.IsVoid() || low.scalar.IsVoid() || high.scalar.IsVoid() {
			return Null(), nil
		}
		cmpLow, err := v.Compare(low.scalar)
		if err != nil {
			return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "%v", err)
		}
		cmpHigh, err := v.Compare(high.scalar)
		if err != nil {
			return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "%v", err)
		}
		return Bool(cmpLow >= 0 && cmpHigh <= 0), nil
	})
}

func evalIsin(nd isinNode, e *env) (result, error) {
	var members []Value
	if list, ok := nd.set.(listNode); ok {
		for _, elem := range list.elems {
			r, err := evalNode(elem, e)
			if err != nil {
				return result{}, err
			}
			if r.isSeries {
				return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "isin list elements must be scalars")
			}
			members = append(members, r.scalar)
		}
	} else {
		set, err := evalNode(nd.set, e)
		if err != nil {
			return result{}, err
		}
		for i := 0; i < set.length(); i++ {
			members = append(members, set.at(i))
		}
	}

	return mapUnary(nd.expr, e, func(v Value) (Value, error) {
		if v.IsVoid() {
			return Null(), nil
		}
		for _, m := range members {
			if b, ok := v.Equals(m).AsBool(); ok && b {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	})
}

func evalApply(nd applyNode, e *env) (result, error) {
	// Frame target: bind the parameter as a row over every record
	if rs := resolveFrame(nd.target, e); rs != nil {
		out := make([]Value, rs.Len())
		for i := range rs.Rows {
			sub := &env{ctx: e.ctx, bindings: childBindings(e, nd.param, binding{rows: rs, rowIdx: i})}
			r, err := evalNode(nd.body, sub)
			if err != nil {
				return result{}, err
			}
			if r.isSeries {
				return result{}, errors.Expressionf(errors.ReasonTypeMismatch, "apply body must yield one value per row")
			}
			out[i] = r.scalar
		}
		return seriesResult(out), nil
	}

	// Column target: bind the parameter per cell
	operand, err := evalNode(nd.target, e)
	if err != nil {
		return result{}, err
	}
	return mapResult(operand, func(v Value) (Value, error) {
		sub := &env{ctx: e.ctx, bindings: childBindings(e, nd.param, binding{cell: v, perCell: true})}
		r, err := evalNode(nd.body, sub)
		if err != nil {
			return Value{}, err
		}
		if r.isSeries {
			return Value{}, errors.Expressionf(errors.ReasonTypeMismatch, "apply body must yield one value per cell")
		}
		return r.scalar, nil
	})
}

// resolveFrame returns the row-set a node names, or nil when the node
// is not a frame reference
func resolveFrame(n node, e *env) *table.RowSet {
	switch nd := n.(type) {
	case frameNode:
		if nd.catalog != "" {
			return e.ctx.Catalogs[nd.catalog]
		}
		return e.ctx.current()
	case colNode:
		if len(nd.keys) == 1 {
			// df['x'] names a frame only when x is a catalog and not a
			// column of the current scope
			if rs := e.ctx.current(); rs != nil && rs.ColumnIndex(nd.keys[0]) >= 0 {
				return nil
			}
			return e.ctx.Catalogs[nd.keys[0]]
		}
	}
	return nil
}

func childBindings(e *env, param string, b binding) map[string]binding {
	out := make(map[string]binding, len(e.bindings)+1)
	for k, v := range e.bindings {
		out[k] = v
	}
	out[param] = b
	return out
}

func mapResult(r result, fn func(Value) (Value, error)) (result, error) {
	if !r.isSeries {
		v, err := fn(r.scalar)
		if err != nil {
			return result{}, err
		}
		return scalarResult(v), nil
	}
	out := make([]Value, len(r.series))
	for i, v := range r.series {
		mapped, err := fn(v)
		if err != nil {
			return result{}, err
		}
		out[i] = mapped
	}
	return seriesResult(out), nil
}

