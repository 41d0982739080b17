package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/errors"
)

func TestCompileAccepts(t *testing.T) {
	sources := []string{
		"df['monto'].astype(float) > 0",
		"df['ventas']['monto'].astype(float).sum() >= 100",
		"monto.astype(int) != 0",
		"df['codigo'].str.match('[A-Z]{3}-[0-9]+')",
		"df['nombre'].str.contains('S\\.A\\.')",
		"df['fecha'].isnull() | df['fecha'].notnull()",
		"~df['activo'].isnull()",
		"df['edad'].astype(int).between(18, 99)",
		"df['pais'].isin(['CL', 'AR', 'PE'])",
		"df['codigo'].isin(df['clientes']['codigo'])",
		"to_datetime(df['fecha']).dt.year == 2026",
		"df['neto'].astype(float) + df['iva'].astype(float) == df['total'].astype(float)",
		"df.apply(lambda r: r['a'].astype(float) <= r['b'].astype(float))",
		"df['monto'].apply(lambda x: x.astype(float) * 1.19 > 0)",
		"(df['a'].notnull() & df['b'].notnull()) | df['c'].isnull()",
		"True",
		"df['x'] == None",
		"-df['saldo'].astype(float) < 100",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			c, err := Compile(src)
			require.NoError(t, err)
			assert.Equal(t, src, c.Source())
		})
	}
}

func TestCompileParseErrors(t *testing.T) {
	sources := []string{
		"",
		"df['monto'] >",
		"df['monto'",
		"df[monto]",
		"df['a'] && df['b']",
		"df['a'].between(1)",
		"df['a'].apply(x: x > 0)",
		"df['a'].str.match('[unclosed')",
		"1 2",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindExpression))
			assert.Equal(t, errors.ReasonParseError, errors.ReasonOf(err))
		})
	}
}

func TestCompileUnknownOperators(t *testing.T) {
	sources := []string{
		"df['monto'].median()",
		"df['monto'].astype(str)",
		"df['codigo'].str.upper()",
		"df['fecha'].dt.weekday",
		"df['monto'].rolling(3)",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			assert.Equal(t, errors.ReasonUnknownOperator, errors.ReasonOf(err))
		})
	}
}

func TestReferencedCatalogs(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{
			src:  "df['ventas']['monto'].astype(float).sum() > df['compras']['monto'].astype(float).sum()",
			want: []string{"ventas", "compras"},
		},
		{
			src:  "df['codigo'].isin(df['clientes']['codigo'])",
			want: []string{"clientes"},
		},
		{
			src:  "df['ventas'].apply(lambda r: r['monto'].notnull())",
			want: []string{"ventas"},
		},
		{
			src:  "monto.astype(float) > 0",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			c, err := Compile(tt.src)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, c.ReferencedCatalogs())
		})
	}
}
