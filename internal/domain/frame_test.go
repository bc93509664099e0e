package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestConcatUnifiesColumns(t *testing.T) {
	a := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}, {ColumnDate, KindTime}, {"CLOSE", KindInt}},
		Rows:    []Row{{"AAA", day(2024, 1, 1), int64(10)}},
	}
	b := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}, {ColumnDate, KindTime}, {"CLOSE", KindFloat}, {"NOTE", KindString}},
		Rows:    []Row{{"BBB", day(2024, 1, 1), 5.5, "new"}},
	}

	out := Concat(a, b)

	wantCols := []string{ColumnSymbol, ColumnDate, "CLOSE", "NOTE"}
	got := out.ColumnNames()
	if fmt.Sprint(got) != fmt.Sprint(wantCols) {
		t.Fatalf("columns = %v, want %v", got, wantCols)
	}
	if out.Columns[2].Kind != KindFloat {
		t.Errorf("CLOSE kind = %q, want %q", out.Columns[2].Kind, KindFloat)
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", out.Len())
	}
	if v, ok := out.Rows[0][2].(float64); !ok || v != 10 {
		t.Errorf("first CLOSE = %#v, want float64(10)", out.Rows[0][2])
	}
	if out.Rows[0][3] != nil {
		t.Errorf("first NOTE = %#v, want nil", out.Rows[0][3])
	}
	if out.Rows[1][3] != "new" {
		t.Errorf("second NOTE = %#v, want %q", out.Rows[1][3], "new")
	}
}

func TestConcatMismatchFallsBackToString(t *testing.T) {
	a := &Frame{Columns: []Column{{"X", KindBool}}, Rows: []Row{{true}}}
	b := &Frame{Columns: []Column{{"X", KindInt}}, Rows: []Row{{int64(3)}}}

	out := Concat(a, b)
	if out.Columns[0].Kind != KindString {
		t.Fatalf("kind = %q, want %q", out.Columns[0].Kind, KindString)
	}
	if out.Rows[0][0] != "true" || out.Rows[1][0] != "3" {
		t.Errorf("cells = %#v, %#v", out.Rows[0][0], out.Rows[1][0])
	}
}

func TestConcatWithEmptyMaster(t *testing.T) {
	b := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}},
		Rows:    []Row{{"AAA"}},
	}
	out := Concat(&Frame{}, b)
	if out.Len() != 1 || out.ColumnIndex(ColumnSymbol) != 0 {
		t.Errorf("Concat with empty frame = %+v", out)
	}
}

func TestDropDuplicatesKeepsLast(t *testing.T) {
	f := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}, {ColumnDate, KindTime}, {"CLOSE", KindInt}},
		Rows: []Row{
			{"AAA", day(2024, 1, 1), int64(10)},
			{"AAA", day(2024, 1, 2), int64(12)},
			{"AAA", day(2024, 1, 1), int64(11)},
			{"BBB", day(2024, 1, 1), int64(5)},
			{"BBB", day(2024, 1, 1), int64(6)},
		},
	}

	f.DropDuplicates(ColumnSymbol, ColumnDate)

	want := []Row{
		{"AAA", day(2024, 1, 2), int64(12)},
		{"AAA", day(2024, 1, 1), int64(11)},
		{"BBB", day(2024, 1, 1), int64(6)},
	}
	if f.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", f.Len(), len(want))
	}
	for i := range want {
		if f.Rows[i][0] != want[i][0] || !f.Rows[i][1].(time.Time).Equal(want[i][1].(time.Time)) || f.Rows[i][2] != want[i][2] {
			t.Errorf("row %d = %v, want %v", i, f.Rows[i], want[i])
		}
	}
}

func TestDropDuplicatesComparesInstants(t *testing.T) {
	utc := day(2024, 1, 1)
	other := utc.In(time.FixedZone("X", 3600))
	f := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}, {ColumnDate, KindTime}},
		Rows:    []Row{{"AAA", utc}, {"AAA", other}},
	}
	f.DropDuplicates(ColumnSymbol, ColumnDate)
	if f.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.Len())
	}
}

func TestDropDuplicatesIgnoresSubMicrosecond(t *testing.T) {
	base := day(2024, 1, 1)
	f := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}, {ColumnDate, KindTime}, {"CLOSE", KindInt}},
		Rows: []Row{
			{"AAA", base.Add(100 * time.Nanosecond), int64(1)},
			{"AAA", base.Add(200 * time.Nanosecond), int64(2)},
			{"AAA", base.Add(time.Microsecond), int64(3)},
		},
	}
	f.DropDuplicates(ColumnSymbol, ColumnDate)
	if f.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", f.Len())
	}
	if f.Rows[0][2] != int64(2) || f.Rows[1][2] != int64(3) {
		t.Errorf("rows = %v, want CLOSE 2 then 3", f.Rows)
	}
}

func TestSymbolsAndGroupBy(t *testing.T) {
	f := &Frame{
		Columns: []Column{{ColumnSymbol, KindString}, {"CLOSE", KindInt}},
		Rows: []Row{
			{"MSFT", int64(1)},
			{"AAPL", int64(2)},
			{nil, int64(3)},
			{"MSFT", int64(4)},
			{"", int64(5)},
		},
	}

	syms := f.Symbols()
	if fmt.Sprint(syms) != "[AAPL MSFT]" {
		t.Errorf("Symbols() = %v, want [AAPL MSFT]", syms)
	}

	groups := f.GroupBy(ColumnSymbol)
	if len(groups) != 2 {
		t.Fatalf("GroupBy returned %d groups, want 2", len(groups))
	}
	msft := groups["MSFT"]
	if len(msft) != 2 || msft[0][1] != int64(1) || msft[1][1] != int64(4) {
		t.Errorf("MSFT group = %v, want rows in frame order", msft)
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-01":                   day(2024, 1, 1),
		"20240102":                     day(2024, 1, 2),
		"2024-01-03 09:30:00":          time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC),
		"2024-01-04T09:30:00Z":         time.Date(2024, 1, 4, 9, 30, 0, 0, time.UTC),
		"2024-01-05T09:30:00+01:00":    time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC),
		"2024-01-06T09:30:00.1234567Z": time.Date(2024, 1, 6, 9, 30, 0, 123456000, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseDate("yesterday"); err == nil {
		t.Error("ParseDate(\"yesterday\") should fail")
	}
}

func TestFormatCellDate(t *testing.T) {
	got := FormatCell(day(2024, 1, 1))
	if got != "2024-01-01T00:00:00.000000Z" {
		t.Errorf("FormatCell(date) = %q", got)
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")

	var mal error = &MalformedInputError{Path: "in.csv", Err: base}
	if !errors.Is(mal, base) {
		t.Error("MalformedInputError should unwrap to its cause")
	}

	var ioErr error = fmt.Errorf("saving: %w", &IOError{Op: "rename", Path: "m.parquet", Err: base})
	var target *IOError
	if !errors.As(ioErr, &target) || target.Op != "rename" {
		t.Errorf("errors.As IOError failed: %v", ioErr)
	}

	se := &SchemaError{Path: "m.parquet", Missing: []string{ColumnDate}}
	if se.Error() != "schema error m.parquet: missing column(s) DATE" {
		t.Errorf("SchemaError.Error() = %q", se.Error())
	}
}
