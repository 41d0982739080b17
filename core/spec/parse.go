package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"sage/internal/errors"
)

// Raw YAML shapes. Optional rule blocks decode to nil slices when
// absent; absence is not an error.
type rawHeader struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	Author      string `yaml:"author"`
}

type rawRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Rule        string `yaml:"rule"`
	Severity    string `yaml:"severity"`
}

type rawField struct {
	Name            string    `yaml:"name"`
	Type            string    `yaml:"type"`
	Required        bool      `yaml:"required"`
	Unique          bool      `yaml:"unique"`
	ValidationRules []rawRule `yaml:"validation_rules"`
}

type rawFileFormat struct {
	Type      string `yaml:"type"`
	Delimiter string `yaml:"delimiter"`
	Header    *bool  `yaml:"header"`
	Sheet     string `yaml:"sheet"`
}

type rawCatalog struct {
	Name              string        `yaml:"name"`
	Description       string        `yaml:"description"`
	Filename          string        `yaml:"filename"`
	FileFormat        rawFileFormat `yaml:"file_format"`
	Fields            []rawField    `yaml:"fields"`
	RowValidation     []rawRule     `yaml:"row_validation"`
	CatalogValidation []rawRule     `yaml:"catalog_validation"`
}

type rawPackage struct {
	Name              string    `yaml:"name"`
	Description       string    `yaml:"description"`
	FileFormat        yaml.Node `yaml:"file_format"`
	Catalogs          []string  `yaml:"catalogs"`
	PackageValidation []rawRule `yaml:"package_validation"`
}

// Parse transforms a YAML rule document into a typed Specification,
// rejecting structurally invalid documents before any data validation
// begins. It is a pure transform with no side effects.
func Parse(document []byte) (*Specification, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(document, &root); err != nil {
		return nil, errors.Wrap(errors.KindSpec, errors.ReasonMalformedRule, "document is not valid YAML", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.Spec(errors.ReasonMissingSection, "document has no top-level mapping")
	}
	top := root.Content[0]

	headerNode := mappingValue(top, "sage_yaml")
	catalogsNode := mappingValue(top, "catalogs")
	packagesNode := mappingValue(top, "packages")
	for _, missing := range []struct {
		name string
		node *yaml.Node
	}{
		{"sage_yaml", headerNode},
		{"catalogs", catalogsNode},
		{"packages", packagesNode},
	} {
		if missing.node == nil {
			return nil, errors.Specf(errors.ReasonMissingSection, "missing top-level section %q", missing.name)
		}
	}

	out := &Specification{}

	var header rawHeader
	if err := headerNode.Decode(&header); err != nil {
		return nil, errors.Wrap(errors.KindSpec, errors.ReasonMalformedRule, "invalid sage_yaml section", err)
	}
	out.Header = Header(header)

	if err := eachMappingEntry(catalogsNode, "catalogs", func(id string, node *yaml.Node) error {
		catalog, err := parseCatalog(id, node)
		if err != nil {
			return err
		}
		if _, dup := out.catalogByID(id); dup {
			return errors.Specf(errors.ReasonDuplicateCatalogRef, "catalog %q declared twice", id)
		}
		out.Catalogs = append(out.Catalogs, catalog)
		return nil
	}); err != nil {
		return nil, err
	}
	out.index()

	if err := eachMappingEntry(packagesNode, "packages", func(id string, node *yaml.Node) error {
		pkg, err := parsePackage(id, node)
		if err != nil {
			return err
		}
		for _, ref := range pkg.Catalogs {
			if _, ok := out.Catalog(ref); !ok {
				return errors.Specf(errors.ReasonDuplicateCatalogRef,
					"package %q references unknown catalog %q", id, ref)
			}
		}
		out.Packages = append(out.Packages, pkg)
		return nil
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Specification) catalogByID(id string) (*CatalogSpec, bool) {
	for _, c := range s.Catalogs {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func parseCatalog(id string, node *yaml.Node) (*CatalogSpec, error) {
	var raw rawCatalog
	if err := node.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.KindSpec, errors.ReasonMalformedRule,
			fmt.Sprintf("invalid catalog %q", id), err)
	}

	catalog := &CatalogSpec{
		ID:          id,
		Name:        raw.Name,
		Description: raw.Description,
		Filename:    raw.Filename,
		FileFormat:  normalizeFormat(raw.FileFormat),
	}

	seen := make(map[string]bool, len(raw.Fields))
	for _, rf := range raw.Fields {
		if rf.Name == "" {
			return nil, errors.Specf(errors.ReasonMalformedRule, "catalog %q has a field without a name", id)
		}
		if seen[rf.Name] {
			return nil, errors.Specf(errors.ReasonDuplicateField,
				"catalog %q declares field %q more than once", id, rf.Name)
		}
		seen[rf.Name] = true

		fieldType := FieldType(rf.Type)
		if !knownType(fieldType) {
			return nil, errors.Specf(errors.ReasonInvalidFieldType,
				"catalog %q field %q has unknown type %q", id, rf.Name, rf.Type)
		}

		rules, err := parseRules(rf.ValidationRules, fmt.Sprintf("catalog %q field %q", id, rf.Name))
		if err != nil {
			return nil, err
		}

		catalog.Fields = append(catalog.Fields, FieldSpec{
			Name:            rf.Name,
			Type:            fieldType,
			Required:        rf.Required,
			Unique:          rf.Unique,
			ValidationRules: rules,
		})
	}

	var err error
	if catalog.RowValidations, err = parseRules(raw.RowValidation, fmt.Sprintf("catalog %q row_validation", id)); err != nil {
		return nil, err
	}
	if catalog.CatalogValidations, err = parseRules(raw.CatalogValidation, fmt.Sprintf("catalog %q catalog_validation", id)); err != nil {
		return nil, err
	}
	return catalog, nil
}

func parsePackage(id string, node *yaml.Node) (*PackageSpec, error) {
	var raw rawPackage
	if err := node.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.KindSpec, errors.ReasonMalformedRule,
			fmt.Sprintf("invalid package %q", id), err)
	}

	pkg := &PackageSpec{
		ID:          id,
		Name:        raw.Name,
		Description: raw.Description,
		Catalogs:    raw.Catalogs,
	}

	// A package file_format may be the bare scalar ZIP or a full
	// file_format mapping borrowed from its single catalog.
	switch raw.FileFormat.Kind {
	case 0:
		pkg.FileFormat = FileFormat{Type: FormatZIP}
	case yaml.ScalarNode:
		pkg.FileFormat = FileFormat{Type: FileFormatType(raw.FileFormat.Value)}
	default:
		var ff rawFileFormat
		if err := raw.FileFormat.Decode(&ff); err != nil {
			return nil, errors.Wrap(errors.KindSpec, errors.ReasonMalformedRule,
				fmt.Sprintf("invalid file_format in package %q", id), err)
		}
		pkg.FileFormat = normalizeFormat(ff)
	}

	var err error
	if pkg.PackageValidations, err = parseRules(raw.PackageValidation, fmt.Sprintf("package %q package_validation", id)); err != nil {
		return nil, err
	}
	return pkg, nil
}

func parseRules(raw []rawRule, where string) ([]Rule, error) {
	var rules []Rule
	for i, rr := range raw {
		if rr.Rule == "" || rr.Description == "" {
			return nil, errors.Specf(errors.ReasonMalformedRule,
				"%s rule %d is missing rule or description", where, i+1)
		}
		severity := Severity(rr.Severity)
		switch severity {
		case "":
			severity = SeverityError
		case SeverityError, SeverityWarning:
		default:
			return nil, errors.Specf(errors.ReasonMalformedRule,
				"%s rule %q has unknown severity %q", where, rr.Name, rr.Severity)
		}
		rules = append(rules, Rule{
			Name:        rr.Name,
			Description: rr.Description,
			Expression:  rr.Rule,
			Severity:    severity,
		})
	}
	return rules, nil
}

func normalizeFormat(raw rawFileFormat) FileFormat {
	ff := FileFormat{
		Type:      FileFormatType(raw.Type),
		Delimiter: raw.Delimiter,
		Header:    true,
		Sheet:     raw.Sheet,
	}
	if ff.Type == "" {
		ff.Type = FormatCSV
	}
	if ff.Delimiter == "" {
		ff.Delimiter = ","
	}
	if raw.Header != nil {
		ff.Header = *raw.Header
	}
	return ff
}

func knownType(t FieldType) bool {
	for _, k := range KnownFieldTypes {
		if t == k {
			return true
		}
	}
	return false
}

// mappingValue finds the value node for a key in a mapping node
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// eachMappingEntry walks a mapping node in document order. An empty
// section (null node) is allowed and yields nothing.
func eachMappingEntry(node *yaml.Node, section string, fn func(key string, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return errors.Specf(errors.ReasonMalformedRule, "section %q must be a mapping", section)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
