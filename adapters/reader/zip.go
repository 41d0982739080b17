package reader

import (
	"archive/zip"
	"fmt"
	"path"

	"sage/core/spec"
	"sage/core/table"
	"sage/internal/errors"
)

// ReadPackage decodes a ZIP delivery: each member file is matched to a
// package catalog by its declared filename. Catalogs without a
// matching member are simply absent from the map; the orchestrator
// records the missing input.
func ReadPackage(specification *spec.Specification, pkg *spec.PackageSpec, zipPath string) (map[string]*table.RowSet, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errors.Wrap(errors.KindInput, "", fmt.Sprintf("cannot open %s", zipPath), err)
	}
	defer zr.Close()

	byFilename := make(map[string]*spec.CatalogSpec, len(pkg.Catalogs))
	for _, id := range pkg.Catalogs {
		catalog, ok := specification.Catalog(id)
		if !ok {
			return nil, errors.Input(fmt.Sprintf("package %q references unknown catalog %q", pkg.ID, id))
		}
		byFilename[catalog.Filename] = catalog
	}

	inputs := make(map[string]*table.RowSet)
	for _, member := range zr.File {
		catalog, ok := byFilename[path.Base(member.Name)]
		if !ok {
			continue
		}
		if catalog.FileFormat.Type != spec.FormatCSV {
			return nil, errors.NotSupported(fmt.Sprintf("reading %s member %s", catalog.FileFormat.Type, member.Name))
		}
		f, err := member.Open()
		if err != nil {
			return nil, errors.Wrap(errors.KindInput, "", fmt.Sprintf("cannot open zip member %s", member.Name), err)
		}
		rows, rerr := readCSV(f, catalog.FileFormat)
		f.Close()
		if rerr != nil {
			return nil, rerr
		}
		inputs[catalog.ID] = rows
	}
	return inputs, nil
}
