package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/core/table"
	"sage/internal/errors"
)

func ventasContext() *Context {
	rs := table.New("producto", "monto", "fecha")
	rs.AppendStrings("pan", "10.50", "2026-01-15")
	rs.AppendStrings("leche", "-5", "2026-02-01")
	rs.Append(table.String("queso"), table.String("abc"), table.Null())
	rs.Append(table.Null(), table.String(""), table.String("2026-03-10"))

	return &Context{
		Catalogs: map[string]*table.RowSet{"ventas": rs},
		Current:  "ventas",
	}
}

func evalRows(t *testing.T, ctx *Context, src string) []bool {
	t.Helper()
	c, err := Compile(src)
	require.NoError(t, err)
	out, err := c.EvalRows(ctx)
	require.NoError(t, err)
	return out
}

func TestEvalRowsComparison(t *testing.T) {
	ctx := ventasContext()

	// Coercion failure ("abc") and the empty cell both fail the rule
	// for their row without aborting the others.
	got := evalRows(t, ctx, "df['monto'].astype(float) > 0")
	assert.Equal(t, []bool{true, false, false, false}, got)

	got = evalRows(t, ctx, "monto.astype(float) <= 0")
	assert.Equal(t, []bool{false, true, false, false}, got)
}

func TestEvalRowsNullChecks(t *testing.T) {
	ctx := ventasContext()

	assert.Equal(t, []bool{false, false, false, true},
		evalRows(t, ctx, "df['producto'].isnull()"))
	assert.Equal(t, []bool{true, true, true, false},
		evalRows(t, ctx, "df['producto'].notnull()"))

	// The empty monto cell counts as missing
	assert.Equal(t, []bool{true, true, true, false},
		evalRows(t, ctx, "df['monto'].notnull()"))
}

func TestEvalRowsCombinators(t *testing.T) {
	ctx := ventasContext()

	got := evalRows(t, ctx, "df['producto'].notnull() & df['monto'].astype(float) > 0")
	assert.Equal(t, []bool{true, false, false, false}, got)

	got = evalRows(t, ctx, "df['monto'].astype(float) > 0 | df['producto'].isnull()")
	assert.Equal(t, []bool{true, false, false, true}, got)

	// Negating a void comparison keeps the row failed rather than
	// flipping it to passed.
	got = evalRows(t, ctx, "~(df['monto'].astype(float) > 0)")
	assert.Equal(t, []bool{false, true, false, false}, got)
}

func TestEvalRowsStringPredicates(t *testing.T) {
	rs := table.New("codigo")
	rs.AppendStrings("ABC-123")
	rs.AppendStrings("xABC-123")
	rs.AppendStrings("ABC")
	rs.Append(table.Null())
	ctx := &Context{Catalogs: map[string]*table.RowSet{"c": rs}, Current: "c"}

	// match anchors at the start of the value
	assert.Equal(t, []bool{true, false, false, false},
		evalRows(t, ctx, "df['codigo'].str.match('[A-Z]{3}-[0-9]+')"))

	// contains does not
	assert.Equal(t, []bool{true, true, false, false},
		evalRows(t, ctx, "df['codigo'].str.contains('[A-Z]{3}-[0-9]+')"))
}

func TestEvalRowsBetweenAndIsin(t *testing.T) {
	rs := table.New("edad", "pais")
	rs.AppendStrings("25", "CL")
	rs.AppendStrings("17", "AR")
	rs.AppendStrings("99", "BR")
	rs.Append(table.Null(), table.Null())
	ctx := &Context{Catalogs: map[string]*table.RowSet{"c": rs}, Current: "c"}

	assert.Equal(t, []bool{true, false, true, false},
		evalRows(t, ctx, "df['edad'].astype(int).between(18, 99)"))

	assert.Equal(t, []bool{true, true, false, false},
		evalRows(t, ctx, "df['pais'].isin(['CL', 'AR', 'PE'])"))
}

func TestEvalRowsIsinAgainstCatalog(t *testing.T) {
	ventas := table.New("codigo_cliente")
	ventas.AppendStrings("C1")
	ventas.AppendStrings("C9")

	clientes := table.New("codigo")
	clientes.AppendStrings("C1")
	clientes.AppendStrings("C2")

	ctx := &Context{
		Catalogs: map[string]*table.RowSet{"ventas": ventas, "clientes": clientes},
		Current:  "ventas",
	}
	assert.Equal(t, []bool{true, false},
		evalRows(t, ctx, "df['codigo_cliente'].isin(df['clientes']['codigo'])"))
}

func TestEvalRowsDates(t *testing.T) {
	rs := table.New("fecha")
	rs.AppendStrings("2026-01-15")
	rs.AppendStrings("15/02/2026")
	rs.AppendStrings("no es fecha")
	rs.Append(table.Null())
	ctx := &Context{Catalogs: map[string]*table.RowSet{"c": rs}, Current: "c"}

	assert.Equal(t, []bool{true, true, false, false},
		evalRows(t, ctx, "to_datetime(df['fecha']).dt.year == 2026"))
	assert.Equal(t, []bool{true, false, false, false},
		evalRows(t, ctx, "to_datetime(df['fecha']).dt.month == 1"))
	assert.Equal(t, []bool{true, true, false, false},
		evalRows(t, ctx, "to_datetime(df['fecha']).dt.day == 15"))
}

func TestEvalRowsArithmetic(t *testing.T) {
	rs := table.New("neto", "iva", "total")
	rs.AppendStrings("100", "19", "119")
	rs.AppendStrings("200", "38", "200")
	ctx := &Context{Catalogs: map[string]*table.RowSet{"c": rs}, Current: "c"}

	got := evalRows(t, ctx,
		"df['neto'].astype(float) + df['iva'].astype(float) == df['total'].astype(float)")
	assert.Equal(t, []bool{true, false}, got)

	// decimal arithmetic, not float: 0.1 + 0.2 == 0.3 holds
	got = evalRows(t, ctx, "0.1 + 0.2 == 0.3")
	assert.Equal(t, []bool{true, true}, got)
}

func TestEvalRowsApplyLambda(t *testing.T) {
	rs := table.New("desde", "hasta")
	rs.AppendStrings("1", "10")
	rs.AppendStrings("5", "3")
	ctx := &Context{Catalogs: map[string]*table.RowSet{"c": rs}, Current: "c"}

	// Column target binds the parameter per cell
	got := evalRows(t, ctx, "df['desde'].apply(lambda x: x.astype(float) < 4)")
	assert.Equal(t, []bool{true, false}, got)

	// Frame target binds the parameter per row
	got = evalRows(t, ctx,
		"df.apply(lambda r: r['desde'].astype(float) <= r['hasta'].astype(float))")
	assert.Equal(t, []bool{true, false}, got)
}

func TestEvalRowsScalarBroadcast(t *testing.T) {
	ctx := ventasContext()
	got := evalRows(t, ctx, "df['monto'].astype(float).sum() > 0")
	assert.Equal(t, []bool{true, true, true, true}, got)
}

func TestEvalAggregate(t *testing.T) {
	ctx := ventasContext()

	c, err := Compile("df['monto'].astype(float).sum() > 5")
	require.NoError(t, err)
	ok, err := c.EvalAggregate(ctx)
	require.NoError(t, err)
	// 10.50 + (-5); "abc" and the empty cell do not contribute
	assert.True(t, ok)

	// A series verdict aggregates with AND
	c, err = Compile("df['producto'].notnull()")
	require.NoError(t, err)
	ok, err = c.EvalAggregate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalAggregatePackageScope(t *testing.T) {
	ventas := table.New("monto")
	ventas.AppendStrings("60")
	ventas.AppendStrings("40")

	compras := table.New("monto")
	compras.AppendStrings("30")

	ctx := &Context{
		Catalogs: map[string]*table.RowSet{"ventas": ventas, "compras": compras},
	}

	c, err := Compile(
		"df['ventas']['monto'].astype(float).sum() > df['compras']['monto'].astype(float).sum()")
	require.NoError(t, err)
	ok, err := c.EvalAggregate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalTypeMismatch(t *testing.T) {
	ctx := ventasContext()

	// Ordering raw text against a number requires astype first
	c, err := Compile("df['monto'] > 0")
	require.NoError(t, err)
	_, err = c.EvalRows(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ReasonTypeMismatch, errors.ReasonOf(err))

	// Equality across kinds is false, not an error
	got := evalRows(t, ctx, "df['monto'] == 0")
	assert.Equal(t, []bool{false, false, false, false}, got)
}

func TestEvalSeriesLengthMismatch(t *testing.T) {
	a := table.New("x")
	a.AppendStrings("1")
	a.AppendStrings("2")
	b := table.New("x")
	b.AppendStrings("1")

	ctx := &Context{
		Catalogs: map[string]*table.RowSet{"a": a, "b": b},
		Current:  "a",
	}
	c, err := Compile("df['a']['x'].astype(float) == df['b']['x'].astype(float)")
	require.NoError(t, err)
	_, err = c.EvalRows(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ReasonTypeMismatch, errors.ReasonOf(err))
}

func TestEvalUnknownColumn(t *testing.T) {
	ctx := ventasContext()
	c, err := Compile("df['no_existe'].notnull()")
	require.NoError(t, err)
	_, err = c.EvalRows(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindExpression))
}

func TestEvalDivisionByZeroIsInvalid(t *testing.T) {
	rs := table.New("den")
	rs.AppendStrings("0")
	rs.AppendStrings("2")
	ctx := &Context{Catalogs: map[string]*table.RowSet{"c": rs}, Current: "c"}

	// Invalid materializes as rule-violated instead of panicking
	got := evalRows(t, ctx, "10 / df['den'].astype(float) > 1")
	assert.Equal(t, []bool{false, true}, got)
}

func TestEvalCustomDateLayouts(t *testing.T) {
	rs := table.New("fecha")
	rs.AppendStrings("15.01.2026")
	ctx := &Context{
		Catalogs:    map[string]*table.RowSet{"c": rs},
		Current:     "c",
		DateLayouts: []string{"02.01.2006"},
	}
	assert.Equal(t, []bool{true},
		evalRows(t, ctx, "to_datetime(df['fecha']).notnull()"))
}
