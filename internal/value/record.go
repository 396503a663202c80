package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is an ordered mapping of column name to Value.
type Record struct {
	columns []string
	values  map[string]Value
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// RecordOf builds a record from parallel column and value slices.
func RecordOf(columns []string, values []Value) (*Record, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("record has %d columns but %d values", len(columns), len(values))
	}
	r := NewRecord()
	for i, col := range columns {
		r.Set(col, values[i])
	}
	return r, nil
}

// Set assigns a value, appending the column if it is new.
func (r *Record) Set(column string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = v
}

// Get returns the value for column; a missing column reads as Null.
func (r *Record) Get(column string) Value {
	if r == nil {
		return Null()
	}
	return r.values[column]
}

// Has reports whether column is present, including present-but-null.
func (r *Record) Has(column string) bool {
	if r == nil {
		return false
	}
	_, ok := r.values[column]
	return ok
}

// Delete removes column if present.
func (r *Record) Delete(column string) {
	if !r.Has(column) {
		return
	}
	delete(r.values, column)
	for i, col := range r.columns {
		if col == column {
			r.columns = append(r.columns[:i:i], r.columns[i+1:]...)
			break
		}
	}
}

// Columns returns the column names in insertion order.
func (r *Record) Columns() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.columns...)
}

// Len returns the number of columns.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.columns)
}

// Clone returns a copy that can be modified independently.
func (r *Record) Clone() *Record {
	out := NewRecord()
	if r == nil {
		return out
	}
	for _, col := range r.columns {
		out.Set(col, r.values[col])
	}
	return out
}

// MarshalJSON writes the record as a JSON object keeping column order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r != nil {
		for i, col := range r.columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			val, err := r.values[col].MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the key order of the input.
func (r *Record) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	tok, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}
	*r = Record{values: make(map[string]Value)}
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", keyTok)
		}
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return fmt.Errorf("column %s: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("column %s: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = decoder.Token()
	return err
}

// Rows is a column-ordered result set. Count carries the unpaged total when known.
type Rows struct {
	Columns []string  `json:"columns"`
	Data    [][]Value `json:"data"`
	Count   *int64    `json:"count,omitempty"`
}

// NewRows returns an empty result set with the given columns.
func NewRows(columns []string) *Rows {
	return &Rows{Columns: append([]string(nil), columns...)}
}

// Push appends one row; the values must follow Columns.
func (r *Rows) Push(values []Value) error {
	if len(values) != len(r.Columns) {
		return fmt.Errorf("row has %d values but result has %d columns", len(values), len(r.Columns))
	}
	r.Data = append(r.Data, values)
	return nil
}

// PushRecord appends a record, reading each of the result's columns from it.
func (r *Rows) PushRecord(rec *Record) {
	row := make([]Value, len(r.Columns))
	for i, col := range r.Columns {
		row[i] = rec.Get(col)
	}
	r.Data = append(r.Data, row)
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// Records converts every row into a Record.
func (r *Rows) Records() []*Record {
	if r == nil {
		return nil
	}
	out := make([]*Record, 0, len(r.Data))
	for _, row := range r.Data {
		rec := NewRecord()
		for i, col := range r.Columns {
			if i < len(row) {
				rec.Set(col, row[i])
			}
		}
		out = append(out, rec)
	}
	return out
}

// RowsFromRecords builds a result set whose columns are the union of the records' columns
// in first-seen order. Missing values are Null.
func RowsFromRecords(records []*Record) *Rows {
	seen := make(map[string]struct{})
	var columns []string
	for _, rec := range records {
		for _, col := range rec.Columns() {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			columns = append(columns, col)
		}
	}
	rows := NewRows(columns)
	for _, rec := range records {
		rows.PushRecord(rec)
	}
	return rows
}
