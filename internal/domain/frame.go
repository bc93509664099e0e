// Package domain defines the tabular row model shared by the ingest and
// publish jobs, along with the error kinds they report.
package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Well-known column names. Every row is keyed by (SYMBOL, DATE).
const (
	ColumnSymbol = "SYMBOL"
	ColumnDate   = "DATE"
)

// DocumentTimeLayout renders DATE cells in published documents.
const DocumentTimeLayout = "2006-01-02T15:04:05.000000Z"

// Kind is the value type of a column.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// Column describes one named, typed column of a Frame.
type Column struct {
	Name string
	Kind Kind
}

// Row holds one cell per column. A cell is nil (null) or one of string,
// int64, float64, bool or time.Time, matching the column's Kind.
type Row []any

// Frame is an ordered collection of rows sharing one column set.
type Frame struct {
	Columns []Column
	Rows    []Row
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// MissingColumns returns the names from want that the frame lacks.
func (f *Frame) MissingColumns(want ...string) []string {
	var missing []string
	for _, name := range want {
		if f.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// Concat returns a new frame holding a's rows followed by b's rows.
//
// The result's columns are a's columns followed by any columns only b has.
// Cells a source does not have are null. When a column's kinds disagree, int
// and float unify to float; any other mismatch falls back to string.
func Concat(a, b *Frame) *Frame {
	out := &Frame{}
	pos := make(map[string]int)
	for _, src := range []*Frame{a, b} {
		if src == nil {
			continue
		}
		for _, c := range src.Columns {
			if i, ok := pos[c.Name]; ok {
				out.Columns[i].Kind = unifyKinds(out.Columns[i].Kind, c.Kind)
				continue
			}
			pos[c.Name] = len(out.Columns)
			out.Columns = append(out.Columns, c)
		}
	}

	out.Rows = make([]Row, 0, a.Len()+b.Len())
	for _, src := range []*Frame{a, b} {
		if src == nil {
			continue
		}
		for _, r := range src.Rows {
			row := make(Row, len(out.Columns))
			for j, c := range src.Columns {
				i := pos[c.Name]
				row[i] = convertCell(r[j], out.Columns[i].Kind)
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// DropDuplicates removes rows whose key columns repeat an earlier row's,
// keeping only the last occurrence of each key. Surviving rows stay in the
// relative order of their last occurrence. Key columns the frame lacks are
// treated as null for every row.
func (f *Frame) DropDuplicates(keys ...string) {
	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i] = f.ColumnIndex(k)
	}

	seen := make(map[string]struct{}, len(f.Rows))
	keep := make([]bool, len(f.Rows))
	for i := len(f.Rows) - 1; i >= 0; i-- {
		k := rowKey(f.Rows[i], idx)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep[i] = true
	}

	rows := f.Rows[:0]
	for i, r := range f.Rows {
		if keep[i] {
			rows = append(rows, r)
		}
	}
	f.Rows = rows
}

// Symbols returns the sorted distinct non-empty SYMBOL values.
func (f *Frame) Symbols() []string {
	i := f.ColumnIndex(ColumnSymbol)
	if i < 0 {
		return nil
	}
	set := make(map[string]struct{})
	for _, r := range f.Rows {
		if s := FormatCell(r[i]); s != "" {
			set[s] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// GroupBy partitions rows by the text of the named column. Rows within a
// group keep their frame order. Rows with a null or empty value are left out.
func (f *Frame) GroupBy(name string) map[string][]Row {
	i := f.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	groups := make(map[string][]Row)
	for _, r := range f.Rows {
		if s := FormatCell(r[i]); s != "" {
			groups[s] = append(groups[s], r)
		}
	}
	return groups
}

// FormatCell renders a cell as text. Null renders as "".
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(DocumentTimeLayout)
	default:
		return ""
	}
}

func unifyKinds(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case (a == KindInt && b == KindFloat) || (a == KindFloat && b == KindInt):
		return KindFloat
	default:
		return KindString
	}
}

func convertCell(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case KindFloat:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	case KindString:
		if _, ok := v.(string); !ok {
			return FormatCell(v)
		}
	}
	return v
}

func rowKey(r Row, idx []int) string {
	var sb strings.Builder
	for _, i := range idx {
		sb.WriteByte(0)
		if i < 0 || r[i] == nil {
			sb.WriteString("null")
			continue
		}
		switch x := r[i].(type) {
		case time.Time:
			// Keyed at the precision the master stores, so keys that would
			// collapse on write are already equal here.
			sb.WriteString("t")
			sb.WriteString(strconv.FormatInt(x.Truncate(DatePrecision).UnixMicro(), 10))
		default:
			sb.WriteString("v")
			sb.WriteString(FormatCell(x))
		}
	}
	return sb.String()
}
