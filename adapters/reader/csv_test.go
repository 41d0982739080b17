package reader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/core/spec"
	"sage/internal/errors"
)

func csvCatalog(id string, format spec.FileFormat) *spec.CatalogSpec {
	return &spec.CatalogSpec{
		ID:         id,
		Filename:   id + ".csv",
		FileFormat: format,
	}
}

func TestReadCSVWithHeader(t *testing.T) {
	rows, err := readCSV(strings.NewReader("producto,monto\npan,10.5\nleche,\n"),
		spec.FileFormat{Type: spec.FormatCSV, Delimiter: ",", Header: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"producto", "monto"}, rows.Columns)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, "pan", rows.Rows[0][0].Raw)
	assert.True(t, rows.Rows[1][1].IsMissing())
}

func TestReadCSVSemicolonDelimiter(t *testing.T) {
	rows, err := readCSV(strings.NewReader("a;b\n1;2\n"),
		spec.FileFormat{Type: spec.FormatCSV, Delimiter: ";", Header: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows.Columns)
	assert.Equal(t, "2", rows.Rows[0][1].Raw)
}

func TestReadCSVWithoutHeader(t *testing.T) {
	rows, err := readCSV(strings.NewReader("1,2\n3,4\n"),
		spec.FileFormat{Type: spec.FormatCSV, Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, []string{"col_1", "col_2"}, rows.Columns)
	assert.Equal(t, 2, rows.Len())
}

func TestReadCSVStripsBOM(t *testing.T) {
	rows, err := readCSV(strings.NewReader("\uFEFFa,b\n1,2\n"),
		spec.FileFormat{Type: spec.FormatCSV, Delimiter: ",", Header: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows.Columns)
}

func TestReadCSVRaggedRows(t *testing.T) {
	rows, err := readCSV(strings.NewReader("a,b,c\n1,2\n"),
		spec.FileFormat{Type: spec.FormatCSV, Delimiter: ",", Header: true})
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	require.Len(t, rows.Rows[0], 3, "short records are padded")
	assert.True(t, rows.Rows[0][2].Null)
}

func TestReadCSVEmpty(t *testing.T) {
	rows, err := readCSV(strings.NewReader(""),
		spec.FileFormat{Type: spec.FormatCSV, Delimiter: ",", Header: true})
	require.NoError(t, err)
	assert.Empty(t, rows.Columns)
	assert.Zero(t, rows.Len())
}

func TestReadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ventas.csv")
	require.NoError(t, os.WriteFile(path, []byte("producto,monto\npan,10\n"), 0644))

	catalog := csvCatalog("ventas", spec.FileFormat{Type: spec.FormatCSV, Delimiter: ",", Header: true})
	rows, err := ReadCatalog(catalog, path)
	require.NoError(t, err)
	assert.Equal(t, 1, rows.Len())

	_, err = ReadCatalog(catalog, filepath.Join(dir, "no-existe.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInput))

	excel := csvCatalog("ventas", spec.FileFormat{Type: spec.FormatExcel, Sheet: "Hoja1"})
	_, err = ReadCatalog(excel, path)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotSupported))
}

func TestReadPackage(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "delivery.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"entrega/ventas.csv":   "producto,monto\npan,10\n",
		"entrega/clientes.csv": "codigo\nC1\n",
		"entrega/extra.txt":    "ignorado",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	specification, err := spec.Parse([]byte(`
sage_yaml:
  name: entrega
catalogs:
  ventas:
    filename: ventas.csv
    fields:
      - name: producto
        type: texto
      - name: monto
        type: decimal
  clientes:
    filename: clientes.csv
    fields:
      - name: codigo
        type: texto
  productos:
    filename: productos.csv
    fields:
      - name: sku
        type: texto
packages:
  paquete:
    file_format: ZIP
    catalogs:
      - ventas
      - clientes
      - productos
`))
	require.NoError(t, err)
	pkg := specification.Packages[0]

	inputs, err := ReadPackage(specification, pkg, zipPath)
	require.NoError(t, err)

	require.Contains(t, inputs, "ventas")
	require.Contains(t, inputs, "clientes")
	assert.NotContains(t, inputs, "productos",
		"a catalog without a matching member is left absent")
	assert.Equal(t, 1, inputs["ventas"].Len())
	assert.Equal(t, []string{"codigo"}, inputs["clientes"].Columns)
}

func TestReadPackageBadZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roto.zip")
	require.NoError(t, os.WriteFile(path, []byte("no es un zip"), 0644))

	_, err := ReadPackage(&spec.Specification{}, &spec.PackageSpec{ID: "p"}, path)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInput))
}
