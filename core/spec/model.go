// Package spec provides the typed model of a SAGE YAML rule
// specification and its parser. A Specification is parsed once per
// run and is read-only thereafter.
package spec

// FieldType is a declared column type
type FieldType string

const (
	TypeTexto    FieldType = "texto"
	TypeDecimal  FieldType = "decimal"
	TypeEntero   FieldType = "entero"
	TypeFecha    FieldType = "fecha"
	TypeBooleano FieldType = "booleano"
)

// KnownFieldTypes lists the recognized field types
var KnownFieldTypes = []FieldType{TypeTexto, TypeDecimal, TypeEntero, TypeFecha, TypeBooleano}

// Severity classifies a rule violation
type Severity string

const (
	// SeverityError contributes to failure status
	SeverityError Severity = "error"

	// SeverityWarning is reported but non-blocking
	SeverityWarning Severity = "warning"
)

// FileFormatType identifies the expected input file format
type FileFormatType string

const (
	FormatCSV   FileFormatType = "CSV"
	FormatExcel FileFormatType = "EXCEL"
	FormatZIP   FileFormatType = "ZIP"
)

// FileFormat describes the expected shape of an input file
type FileFormat struct {
	Type FileFormatType

	// Delimiter applies to CSV
	Delimiter string

	// Header reports whether the first record is a header row
	Header bool

	// Sheet applies to Excel
	Sheet string
}

// Rule is a named, described, severity-tagged boolean expression.
// Description is user-facing and opaque to the engine.
type Rule struct {
	Name        string
	Description string
	Expression  string
	Severity    Severity
}

// FieldSpec declares one expected column
type FieldSpec struct {
	Name            string
	Type            FieldType
	Required        bool
	Unique          bool
	ValidationRules []Rule
}

// CatalogSpec declares one expected file type and its schema.
// Field order defines the expected column order.
type CatalogSpec struct {
	ID          string
	Name        string
	Description string
	Filename    string
	FileFormat  FileFormat
	Fields      []FieldSpec

	RowValidations     []Rule
	CatalogValidations []Rule
}

// FieldNames returns the declared column names in order
func (c *CatalogSpec) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// PackageSpec groups catalogs delivered together plus cross-catalog rules
type PackageSpec struct {
	ID          string
	Name        string
	Description string
	FileFormat  FileFormat
	Catalogs    []string

	PackageValidations []Rule
}

// Header is document metadata with no runtime effect
type Header struct {
	Name        string
	Description string
	Version     string
	Author      string
}

// Specification is the parsed YAML rule document. Catalogs and
// Packages preserve document order so runs are deterministic.
type Specification struct {
	Header   Header
	Catalogs []*CatalogSpec
	Packages []*PackageSpec

	catalogIndex map[string]*CatalogSpec
}

// Catalog looks up a catalog by identifier
func (s *Specification) Catalog(id string) (*CatalogSpec, bool) {
	c, ok := s.catalogIndex[id]
	return c, ok
}

func (s *Specification) index() {
	s.catalogIndex = make(map[string]*CatalogSpec, len(s.Catalogs))
	for _, c := range s.Catalogs {
		s.catalogIndex[c.ID] = c
	}
}
