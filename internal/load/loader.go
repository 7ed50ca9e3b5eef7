// Package load persists cleaned creature records to file sinks.
//
// A Loader fixes its run timestamp at construction, so every file written by
// one run shares the same suffix. Each writer is independent: a failure is
// returned as a *core.SinkError and never affects other sinks.
package load

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// TimestampLayout formats the run timestamp appended to file names.
const TimestampLayout = "20060102_150405"

// DefaultSheetName names the worksheet when none is given.
const DefaultSheetName = "Creatures"

// Loader writes records to files.
type Loader struct {
	timestamp string
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock sets the clock used for the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *loaderOptions) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *loaderOptions) { o.logger = l }
}

// New creates a Loader and fixes its timestamp.
func New(opts ...Option) *Loader {
	o := loaderOptions{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader{
		timestamp: o.now().Format(TimestampLayout),
		logger:    o.logger.With("component", "loader"),
	}
}

// Timestamp returns the run timestamp.
func (l *Loader) Timestamp() string {
	return l.timestamp
}

// OutputPath returns path, with "_<timestamp>" inserted before the extension
// when timestamped is set.
func (l *Loader) OutputPath(path string, timestamped bool) string {
	if !timestamped {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + l.timestamp + ext
}

// create makes the parent directory and opens the file for writing.
func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	return os.Create(path)
}

// WriteCSV writes recs as UTF-8 CSV with a header row and returns the path
// written.
func (l *Loader) WriteCSV(recs []core.Creature, path string, timestamped bool) (string, error) {
	out := l.OutputPath(path, timestamped)
	if err := writeCSV(recs, out); err != nil {
		return "", core.NewSinkError("csv", out, err)
	}
	l.written("csv", out, len(recs))
	return out, nil
}

func writeCSV(recs []core.Creature, path string) (err error) {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(core.CreatureColumns); err != nil {
		return err
	}
	for i := range recs {
		if err := w.Write(recs[i].Values()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSON writes recs as a 2-space indented array of objects keyed by
// column name and returns the path written.
func (l *Loader) WriteJSON(recs []core.Creature, path string, timestamped bool) (string, error) {
	out := l.OutputPath(path, timestamped)
	if err := writeJSON(recs, out); err != nil {
		return "", core.NewSinkError("json", out, err)
	}
	l.written("json", out, len(recs))
	return out, nil
}

func writeJSON(recs []core.Creature, path string) (err error) {
	if recs == nil {
		recs = []core.Creature{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = f.Write(append(data, '\n'))
	return err
}

// WriteSpreadsheet writes recs to a workbook with a single sheet and returns
// the path written. An empty sheet name uses DefaultSheetName.
func (l *Loader) WriteSpreadsheet(recs []core.Creature, path string, timestamped bool, sheet string) (string, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	out := l.OutputPath(path, timestamped)
	if err := writeSpreadsheet(recs, out, sheet); err != nil {
		return "", core.NewSinkError("xlsx", out, err)
	}
	l.written("xlsx", out, len(recs), "sheet", sheet)
	return out, nil
}

func writeSpreadsheet(recs []core.Creature, path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}

	header := make([]interface{}, len(core.CreatureColumns))
	for i, c := range core.CreatureColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i := range recs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, spreadsheetRow(&recs[i])); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return f.SaveAs(path)
}

// spreadsheetRow keeps numbers and booleans typed so the workbook stays
// sortable. Nil values become empty cells.
func spreadsheetRow(c *core.Creature) []interface{} {
	num := func(v *int64) interface{} {
		if v == nil {
			return nil
		}
		return *v
	}
	var ratio interface{}
	if c.AttackDefenseRatio != nil {
		ratio = *c.AttackDefenseRatio
	}
	return []interface{}{
		num(c.ID),
		c.Name,
		c.PrimaryType,
		c.SecondaryType,
		num(c.HP),
		num(c.Attack),
		num(c.Defense),
		num(c.SpecialAttack),
		num(c.SpecialDefense),
		num(c.Speed),
		num(c.TotalPower),
		num(c.Generation),
		c.IsLegendary,
		c.IsVariant,
		c.VariantForm,
		c.TypeCombination,
		num(c.OffensivePower),
		num(c.DefensivePower),
		ratio,
		c.PowerCategory,
	}
}

func (l *Loader) written(sink, path string, n int, attrs ...any) {
	args := []any{"sink", sink, "path", path, "records", n}
	if st, err := os.Stat(path); err == nil {
		args = append(args, "bytes", st.Size())
	}
	l.logger.Info("sink written", append(args, attrs...)...)
}
