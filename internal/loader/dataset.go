package loader

import "strings"

// Record maps column name to value for a single row.
type Record map[string]Value

// Dataset is an ordered collection of records sharing one column set.
// Columns fixes the column order used for the bulk insert.
type Dataset struct {
	Columns []string
	Records []Record
}

// NewDataset returns an empty dataset with the given column order.
func NewDataset(columns ...string) *Dataset {
	return &Dataset{Columns: columns}
}

// Append adds records to the dataset.
func (d *Dataset) Append(records ...Record) {
	d.Records = append(d.Records, records...)
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// KeyTuple is the projection of a record onto the key columns, in key order.
type KeyTuple []Value

// Key returns a canonical string used to compare tuples for equality.
func (t KeyTuple) Key() string {
	b := make([]byte, 0, len(t)*16)
	for _, v := range t {
		b = v.appendKey(b)
	}
	return string(b)
}

func (t KeyTuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Project returns the key tuple of r for the given key columns.
func Project(r Record, keys KeyColumnSpec) KeyTuple {
	t := make(KeyTuple, len(keys))
	for i, k := range keys {
		t[i] = r[k.Name]
	}
	return t
}
