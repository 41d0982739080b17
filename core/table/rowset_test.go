package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowSetAppendPadsShortRows(t *testing.T) {
	rs := New("a", "b", "c")
	rs.Append(String("1"))

	require.Equal(t, 1, rs.Len())
	row := rs.Rows[0]
	require.Len(t, row, 3)
	assert.Equal(t, "1", row[0].Raw)
	assert.True(t, row[1].Null)
	assert.True(t, row[2].Null)
}

func TestRowSetColumn(t *testing.T) {
	rs := New("a", "b")
	rs.AppendStrings("1", "x")
	rs.AppendStrings("2", "y")

	cells, ok := rs.Column("b")
	require.True(t, ok)
	require.Len(t, cells, 2)
	assert.Equal(t, "x", cells[0].Raw)
	assert.Equal(t, "y", cells[1].Raw)

	_, ok = rs.Column("z")
	assert.False(t, ok)
	assert.Equal(t, -1, rs.ColumnIndex("z"))
	assert.Equal(t, 1, rs.ColumnIndex("b"))
}

func TestCellIsMissing(t *testing.T) {
	assert.True(t, Null().IsMissing())
	assert.True(t, String("").IsMissing())
	assert.False(t, String("0").IsMissing())
	assert.False(t, String(" ").IsMissing())
}
