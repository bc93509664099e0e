package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockpub/internal/domain"
)

// Compile-time interface check.
var _ FrameStore = (*ParquetStore)(nil)

// columnsMetadataKey holds the logical column order as a JSON array. Parquet
// groups are written with their fields sorted by name, so the order the
// columns arrived in has to travel separately.
const columnsMetadataKey = "stockpub.columns"

// ParquetStore implements FrameStore using a single Parquet file per dataset.
type ParquetStore struct{}

// NewParquetStore creates a new ParquetStore.
func NewParquetStore() *ParquetStore {
	return &ParquetStore{}
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// ReadFrame loads the Parquet file at path. A zero-byte file is an empty
// dataset.
func (s *ParquetStore) ReadFrame(_ context.Context, path string) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrMissingInput)
		}
		return nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, &domain.IOError{Op: "stat", Path: path, Err: err}
	}
	if st.Size() == 0 {
		return &domain.Frame{}, nil
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, &domain.MalformedInputError{Path: path, Err: err}
	}

	frame, err := decodeFile(pf)
	if err != nil {
		return nil, &domain.MalformedInputError{Path: path, Err: err}
	}
	return frame, nil
}

// leafDecoder converts one non-null Parquet value into a frame cell.
type leafDecoder func(v parquet.Value) any

func decodeFile(pf *parquet.File) (*domain.Frame, error) {
	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	kinds := make([]domain.Kind, len(fields))
	decoders := make([]leafDecoder, len(fields))
	for i, fld := range fields {
		if !fld.Leaf() || fld.Repeated() {
			return nil, fmt.Errorf("column %q is not a flat scalar column", fld.Name())
		}
		kind, dec, err := decoderFor(fld.Type())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", fld.Name(), err)
		}
		names[i], kinds[i], decoders[i] = fld.Name(), kind, dec
	}

	// pos maps a leaf column index to its position in the frame.
	order := logicalOrder(pf, names)
	pos := make([]int, len(names))
	frame := &domain.Frame{Columns: make([]domain.Column, len(names))}
	for p, name := range order {
		for leaf := range names {
			if names[leaf] == name {
				pos[leaf] = p
				frame.Columns[p] = domain.Column{Name: name, Kind: kinds[leaf]}
			}
		}
	}

	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, frame, pos, decoders); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func readRowGroup(rg parquet.RowGroup, frame *domain.Frame, pos []int, decoders []leafDecoder) error {
	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 128)
	for {
		n, err := rows.ReadRows(buf)
		for _, r := range buf[:n] {
			row := make(domain.Row, len(frame.Columns))
			for _, v := range r {
				c := v.Column()
				if c < 0 || c >= len(pos) || v.IsNull() {
					continue
				}
				row[pos[c]] = decoders[c](v)
			}
			frame.Rows = append(frame.Rows, row)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// logicalOrder returns the stored column order when the metadata names
// exactly the file's columns, else the physical order.
func logicalOrder(pf *parquet.File, names []string) []string {
	raw, ok := pf.Lookup(columnsMetadataKey)
	if !ok {
		return names
	}
	var order []string
	if err := json.Unmarshal([]byte(raw), &order); err != nil || len(order) != len(names) {
		return names
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, n := range order {
		if !have[n] {
			return names
		}
		delete(have, n)
	}
	return order
}

func decoderFor(t parquet.Type) (domain.Kind, leafDecoder, error) {
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.Timestamp != nil:
			switch unit := lt.Timestamp.Unit; {
			case unit.Millis != nil:
				return domain.KindTime, func(v parquet.Value) any { return time.UnixMilli(v.Int64()).UTC() }, nil
			case unit.Micros != nil:
				return domain.KindTime, func(v parquet.Value) any { return time.UnixMicro(v.Int64()).UTC() }, nil
			default:
				return domain.KindTime, func(v parquet.Value) any { return time.Unix(0, v.Int64()).UTC() }, nil
			}
		case lt.Date != nil:
			return domain.KindTime, func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}, nil
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		return domain.KindBool, func(v parquet.Value) any { return v.Boolean() }, nil
	case parquet.Int32:
		return domain.KindInt, func(v parquet.Value) any { return int64(v.Int32()) }, nil
	case parquet.Int64:
		return domain.KindInt, func(v parquet.Value) any { return v.Int64() }, nil
	case parquet.Float:
		return domain.KindFloat, func(v parquet.Value) any { return float64(v.Float()) }, nil
	case parquet.Double:
		return domain.KindFloat, func(v parquet.Value) any { return v.Double() }, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return domain.KindString, func(v parquet.Value) any { return string(v.ByteArray()) }, nil
	}
	return "", nil, fmt.Errorf("unsupported physical type %s", t)
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFrame replaces the Parquet file at path with the frame's contents.
// Every column is written as an optional leaf so null cells round-trip.
func (s *ParquetStore) WriteFrame(_ context.Context, path string, frame *domain.Frame) error {
	if len(frame.Columns) == 0 {
		return fmt.Errorf("writing %s: frame has no columns", path)
	}

	group := make(parquet.Group, len(frame.Columns))
	for _, c := range frame.Columns {
		node, err := nodeFor(c.Kind)
		if err != nil {
			return fmt.Errorf("writing %s: column %q: %w", path, c.Name, err)
		}
		group[c.Name] = parquet.Optional(node)
	}
	schema := parquet.NewSchema("stock_rows", group)

	leaves := make([]parquet.LeafColumn, len(frame.Columns))
	for i, c := range frame.Columns {
		leaf, ok := schema.Lookup(c.Name)
		if !ok {
			return fmt.Errorf("writing %s: column %q missing from schema", path, c.Name)
		}
		leaves[i] = leaf
	}

	rows := make([]parquet.Row, 0, len(frame.Rows))
	for n, r := range frame.Rows {
		row, err := encodeRow(r, frame.Columns, leaves)
		if err != nil {
			return fmt.Errorf("writing %s: row %d: %w", path, n, err)
		}
		rows = append(rows, row)
	}

	order, err := json.Marshal(frame.ColumnNames())
	if err != nil {
		return err
	}

	return writeAtomic(path, func(w io.Writer) error {
		pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(columnsMetadataKey, string(order)))
		if len(rows) > 0 {
			if _, err := pw.WriteRows(rows); err != nil {
				return err
			}
		}
		return pw.Close()
	})
}

func nodeFor(k domain.Kind) (parquet.Node, error) {
	switch k {
	case domain.KindString:
		return parquet.String(), nil
	case domain.KindInt:
		return parquet.Int(64), nil
	case domain.KindFloat:
		return parquet.Leaf(parquet.DoubleType), nil
	case domain.KindBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case domain.KindTime:
		return parquet.Timestamp(parquet.Microsecond), nil
	}
	return nil, fmt.Errorf("unknown kind %q", k)
}

// encodeRow lays the cells out in leaf column order, which is what the
// writer expects regardless of the frame's logical order.
func encodeRow(r domain.Row, cols []domain.Column, leaves []parquet.LeafColumn) (parquet.Row, error) {
	row := make(parquet.Row, len(cols))
	for i, cell := range r {
		leaf := leaves[i]
		if cell == nil {
			row[leaf.ColumnIndex] = parquet.NullValue().Level(0, 0, leaf.ColumnIndex)
			continue
		}

		var v parquet.Value
		switch x := cell.(type) {
		case string:
			if cols[i].Kind != domain.KindString {
				return nil, cellMismatch(cols[i], cell)
			}
			v = parquet.ByteArrayValue([]byte(x))
		case int64:
			if cols[i].Kind != domain.KindInt {
				return nil, cellMismatch(cols[i], cell)
			}
			v = parquet.Int64Value(x)
		case float64:
			if cols[i].Kind != domain.KindFloat {
				return nil, cellMismatch(cols[i], cell)
			}
			v = parquet.DoubleValue(x)
		case bool:
			if cols[i].Kind != domain.KindBool {
				return nil, cellMismatch(cols[i], cell)
			}
			v = parquet.BooleanValue(x)
		case time.Time:
			if cols[i].Kind != domain.KindTime {
				return nil, cellMismatch(cols[i], cell)
			}
			v = parquet.Int64Value(x.UnixMicro())
		default:
			return nil, cellMismatch(cols[i], cell)
		}
		row[leaf.ColumnIndex] = v.Level(0, leaf.MaxDefinitionLevel, leaf.ColumnIndex)
	}
	return row, nil
}

func cellMismatch(c domain.Column, cell any) error {
	return fmt.Errorf("column %q (%s) cannot hold %T", c.Name, c.Kind, cell)
}
