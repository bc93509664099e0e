// Package publish projects the master dataset into static JSON documents:
// one index listing every symbol and one row array per symbol.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"stockpub/internal/domain"
	"stockpub/internal/job"
	"stockpub/internal/store"
)

var _ job.Job = (*Publisher)(nil)

// IndexDocument is the file name of the symbol index.
const IndexDocument = "index.json"

// Publisher writes OutputDir/index.json and OutputDir/<SYMBOL>.json from the
// master dataset at FilePath. Every run rewrites all documents.
type Publisher struct {
	FilePath  string
	OutputDir string
	Store     store.FrameStore
	Log       *slog.Logger
}

// Result describes a completed publish.
type Result struct {
	Rows      int
	Symbols   int
	Documents int
	// Skipped is set when the master dataset was missing or empty.
	Skipped bool
}

// New creates a Publisher. A nil logger discards progress output.
func New(filePath, outputDir string, fs store.FrameStore, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{
		FilePath:  filePath,
		OutputDir: outputDir,
		Store:     fs,
		Log:       log,
	}
}

// Name returns the job identifier.
func (p *Publisher) Name() string { return "publish" }

// Run performs Publish and reports it as a job summary.
func (p *Publisher) Run(ctx context.Context) (job.Summary, error) {
	res, err := p.Publish(ctx)
	sum := job.Summary{RowsIn: res.Rows, RowsOut: res.Documents, Skipped: res.Skipped}
	switch {
	case res.Skipped:
		sum.Detail = "no master data"
	case err == nil:
		sum.Detail = fmt.Sprintf("%d symbols", res.Symbols)
	}
	return sum, err
}

// Publish loads the master dataset and writes the index followed by one
// document per symbol. Rows within a symbol keep their master order.
//
// Schema problems are detected before anything is written. The first failed
// write aborts the run; documents written before it are left in place.
func (p *Publisher) Publish(ctx context.Context) (Result, error) {
	p.Log.Info("starting publish", "master", p.FilePath, "output", p.OutputDir)

	frame, err := p.Store.ReadFrame(ctx, p.FilePath)
	if errors.Is(err, domain.ErrMissingInput) {
		p.Log.Info("master dataset not found, nothing to publish", "path", p.FilePath)
		return Result{Skipped: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("loading master dataset: %w", err)
	}
	if frame.Len() == 0 {
		p.Log.Info("master dataset is empty, nothing to publish", "path", p.FilePath)
		return Result{Skipped: true}, nil
	}
	p.Log.Info("loaded master dataset", "rows", frame.Len())

	if missing := frame.MissingColumns(domain.ColumnSymbol, domain.ColumnDate); len(missing) > 0 {
		return Result{}, &domain.SchemaError{Path: p.FilePath, Missing: missing}
	}
	if err := frame.NormalizeDates(); err != nil {
		return Result{}, &domain.SchemaError{Path: p.FilePath, Reason: err.Error()}
	}

	symbols := frame.Symbols()
	names := make(map[string]string, len(symbols))
	// Documents may land on a case-insensitive filesystem, where AAA.json and
	// aaa.json are one file.
	folded := make(map[string]string, len(symbols))
	for _, s := range symbols {
		name, err := documentName(s)
		if err != nil {
			return Result{}, &domain.SchemaError{Path: p.FilePath, Reason: err.Error()}
		}
		key := strings.ToLower(name)
		if prev, ok := folded[key]; ok {
			return Result{}, &domain.SchemaError{
				Path:   p.FilePath,
				Reason: fmt.Sprintf("symbols %q and %q differ only by case", prev, s),
			}
		}
		folded[key] = s
		names[s] = name
	}

	groups := frame.GroupBy(domain.ColumnSymbol)
	grouped := 0
	for _, rows := range groups {
		grouped += len(rows)
	}
	if dropped := frame.Len() - grouped; dropped > 0 {
		p.Log.Warn("rows without a symbol are not published", "rows", dropped)
	}

	res := Result{Rows: frame.Len(), Symbols: len(symbols)}

	index, err := EncodeIndex(symbols)
	if err != nil {
		return res, err
	}
	if err := store.WriteFileAtomic(filepath.Join(p.OutputDir, IndexDocument), index); err != nil {
		return res, fmt.Errorf("writing index: %w", err)
	}
	p.Log.Info("wrote index", "symbols", len(symbols))

	for _, s := range symbols {
		doc, err := EncodeRows(frame.Columns, groups[s])
		if err != nil {
			return res, fmt.Errorf("encoding %s: %w", s, err)
		}
		if err := store.WriteFileAtomic(filepath.Join(p.OutputDir, names[s]), doc); err != nil {
			return res, fmt.Errorf("writing %s: %w", s, err)
		}
		res.Documents++
		p.Log.Debug("wrote symbol document", "symbol", s, "rows", len(groups[s]))
	}

	p.Log.Info("published documents", "symbols", len(symbols), "documents", res.Documents, "dir", p.OutputDir)
	return res, nil
}

// documentName maps a symbol to its document file name, refusing names that
// would escape the output directory or overwrite the index.
func documentName(symbol string) (string, error) {
	if symbol == "." || symbol == ".." || strings.ContainsAny(symbol, "/\\\x00") {
		return "", fmt.Errorf("symbol %q cannot be used as a file name", symbol)
	}
	name := symbol + ".json"
	if strings.EqualFold(name, IndexDocument) {
		return "", fmt.Errorf("symbol %q collides with the index document", symbol)
	}
	return name, nil
}

type indexDoc struct {
	Symbols []string `json:"symbols"`
}

// EncodeIndex renders the index document as indented JSON.
func EncodeIndex(symbols []string) ([]byte, error) {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.MarshalIndent(indexDoc{Symbols: symbols}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeRows renders rows as a compact JSON array of objects whose keys follow
// the column order. Time cells use domain.DocumentTimeLayout; null, NaN and
// infinite cells become null.
func EncodeRows(cols []domain.Column, rows []domain.Row) ([]byte, error) {
	keys := make([][]byte, len(cols))
	for i, c := range cols {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for n, r := range rows {
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i := range cols {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			if err := encodeCell(&buf, r[i]); err != nil {
				return nil, fmt.Errorf("column %s: %w", cols[i].Name, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func encodeCell(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case time.Time:
		buf.WriteByte('"')
		buf.WriteString(x.UTC().Format(domain.DocumentTimeLayout))
		buf.WriteByte('"')
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
