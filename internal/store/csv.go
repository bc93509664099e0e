package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"stockpub/internal/domain"
)

// ReadCSV loads a daily batch file. The first record is the header; every
// other record must have the same number of fields.
//
// Column kinds are inferred from the data: int when every non-empty cell is
// an integer, float when every one is numeric, bool when every one is
// true/false, string otherwise. SYMBOL is always a string and DATE is always
// parsed to a UTC instant. Empty cells are null.
func ReadCSV(path string) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrMissingInput)
		}
		return nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	records, err := csv.NewReader(bufio.NewReader(f)).ReadAll()
	if err != nil {
		return nil, &domain.MalformedInputError{Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, &domain.MalformedInputError{Path: path, Err: errors.New("no header row")}
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &domain.MalformedInputError{Path: path, Err: fmt.Errorf("header field %d is empty", i+1)}
		}
		if seen[name] {
			return nil, &domain.MalformedInputError{Path: path, Err: fmt.Errorf("duplicate header %q", name)}
		}
		seen[name] = true
		header[i] = name
	}

	body := records[1:]
	frame := &domain.Frame{
		Columns: make([]domain.Column, len(header)),
		Rows:    make([]domain.Row, len(body)),
	}
	for i := range body {
		frame.Rows[i] = make(domain.Row, len(header))
	}

	for j, name := range header {
		kind := columnKind(name, body, j)
		frame.Columns[j] = domain.Column{Name: name, Kind: kind}
		for i, rec := range body {
			cell, err := parseCell(rec[j], kind)
			if err != nil {
				// Line numbers are 1-based and count the header.
				return nil, &domain.MalformedInputError{
					Path: path,
					Err:  fmt.Errorf("line %d, column %s: %w", i+2, name, err),
				}
			}
			frame.Rows[i][j] = cell
		}
	}
	return frame, nil
}

func columnKind(name string, body [][]string, j int) domain.Kind {
	switch name {
	case domain.ColumnSymbol:
		return domain.KindString
	case domain.ColumnDate:
		return domain.KindTime
	}

	isInt, isFloat, isBool := true, true, true
	for _, rec := range body {
		s := rec[j]
		if s == "" {
			continue
		}
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			isBool = strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
		}
	}
	switch {
	case isInt:
		return domain.KindInt
	case isFloat:
		return domain.KindFloat
	case isBool:
		return domain.KindBool
	default:
		return domain.KindString
	}
}

func parseCell(s string, kind domain.Kind) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch kind {
	case domain.KindInt:
		return strconv.ParseInt(s, 10, 64)
	case domain.KindFloat:
		return strconv.ParseFloat(s, 64)
	case domain.KindBool:
		return strings.EqualFold(s, "true"), nil
	case domain.KindTime:
		return domain.ParseDate(s)
	default:
		return s, nil
	}
}
