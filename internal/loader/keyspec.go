package loader

import (
	"regexp"
	"strings"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// Declared types: "int", "timestamp", "double precision", "numeric(10,2)",
	// "timestamp(3) with time zone", "int[]".
	typePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]*(\(\s*[0-9]+\s*(,\s*[0-9]+\s*)?\))?[A-Za-z ]*(\[\])?$`)
)

const maxTypeLen = 64

// KeyColumn names a key column and its store-specific declared type. The
// type is used verbatim when creating the staging table.
type KeyColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// KeyColumnSpec is the ordered set of columns identifying a logical row.
type KeyColumnSpec []KeyColumn

// Validate checks the key list is non-empty, names are unique safe identifiers
// and declared types contain no injection characters.
func (s KeyColumnSpec) Validate() error {
	if len(s) == 0 {
		return &SchemaError{Reason: "key column spec is empty"}
	}
	seen := make(map[string]struct{}, len(s))
	for _, k := range s {
		if !identPattern.MatchString(k.Name) {
			return &SchemaError{Field: k.Name, Reason: "column name is not a plain identifier"}
		}
		if _, dup := seen[k.Name]; dup {
			return &SchemaError{Field: k.Name, Reason: "duplicate key column"}
		}
		seen[k.Name] = struct{}{}

		typ := strings.TrimSpace(k.Type)
		if typ == "" || len(typ) > maxTypeLen || !typePattern.MatchString(typ) {
			return &SchemaError{Field: k.Name, Reason: "unsafe declared type " + quote(k.Type)}
		}
	}
	return nil
}

// Names returns the key column names in spec order.
func (s KeyColumnSpec) Names() []string {
	names := make([]string, len(s))
	for i, k := range s {
		names[i] = k.Name
	}
	return names
}

// Identifier is a possibly schema-qualified table name, e.g. "public.weather_history".
type Identifier string

// Parts splits the identifier on dots.
func (id Identifier) Parts() []string {
	return strings.Split(string(id), ".")
}

// Validate checks every dot-separated part is a plain identifier.
func (id Identifier) Validate() error {
	parts := id.Parts()
	if len(parts) > 3 {
		return &SchemaError{Field: string(id), Reason: "too many qualifiers in table name"}
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return &SchemaError{Field: string(id), Reason: "table name is not a plain identifier"}
		}
	}
	return nil
}

func (id Identifier) String() string { return string(id) }

func quote(s string) string { return `"` + s + `"` }
