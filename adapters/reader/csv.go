// Package reader decodes input files into row-sets. The engine treats
// decoding as a black box; this adapter is the default file-based
// collaborator behind that boundary.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"sage/core/spec"
	"sage/core/table"
	"sage/internal/errors"
)

// ReadCatalog decodes one catalog's input file according to its
// declared file format
func ReadCatalog(catalog *spec.CatalogSpec, path string) (*table.RowSet, error) {
	switch catalog.FileFormat.Type {
	case spec.FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindInput, "", fmt.Sprintf("cannot open %s", path), err)
		}
		defer f.Close()
		return readCSV(f, catalog.FileFormat)
	case spec.FormatExcel:
		// Excel decoding is delegated to an external collaborator
		return nil, errors.NotSupported("reading EXCEL input")
	default:
		return nil, errors.Input(fmt.Sprintf("catalog %q has non-tabular format %s", catalog.ID, catalog.FileFormat.Type))
	}
}

// readCSV decodes delimiter-separated text. Without a header row the
// column names come from nowhere, so the row-set reports positional
// names; the structural column-name check then runs against those.
func readCSV(r io.Reader, format spec.FileFormat) (*table.RowSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if format.Delimiter != "" {
		cr.Comma = rune(format.Delimiter[0])
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.KindInput, "", "cannot decode CSV", err)
	}
	if len(records) == 0 {
		return table.New(), nil
	}

	var rows *table.RowSet
	body := records
	if format.Header {
		header := make([]string, len(records[0]))
		for i, name := range records[0] {
			header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		}
		rows = table.New(header...)
		body = records[1:]
	} else {
		columns := make([]string, len(records[0]))
		for i := range columns {
			columns[i] = fmt.Sprintf("col_%d", i+1)
		}
		rows = table.New(columns...)
	}

	for _, record := range body {
		cells := make([]table.Cell, len(record))
		for i, value := range record {
			cells[i] = table.String(value)
		}
		rows.Append(cells...)
	}
	return rows, nil
}
