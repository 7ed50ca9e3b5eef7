package load

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/creature-etl/internal/core"
	"github.com/JonMunkholm/creature-etl/internal/extract"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newTestLoader() *Loader {
	return New(
		WithClock(func() time.Time { return fixedTime }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func sampleCreatures() []core.Creature {
	recs := []core.Creature{
		{
			ID: core.Int64(1), Name: "Bulbasaur", PrimaryType: "Grass", SecondaryType: "Poison",
			HP: core.Int64(45), Attack: core.Int64(49), Defense: core.Int64(49),
			SpecialAttack: core.Int64(65), SpecialDefense: core.Int64(65), Speed: core.Int64(45),
			TotalPower: core.Int64(318), Generation: core.Int64(1),
		},
		{
			ID: core.Int64(6), Name: "Charizard, the \"Flame\"", PrimaryType: "Fire", SecondaryType: "Flying",
			HP: core.Int64(78), Attack: core.Int64(84), Defense: core.Int64(78),
			SpecialAttack: core.Int64(109), SpecialDefense: core.Int64(85), Speed: core.Int64(100),
			TotalPower: core.Int64(534), Generation: core.Int64(1),
		},
		{
			ID: core.Int64(150), Name: "MewtwoMega Mewtwo X", PrimaryType: "Psychic",
			TotalPower: core.Int64(780), Generation: core.Int64(1), IsLegendary: true, IsVariant: true,
			VariantForm: "Mega Mewtwo",
		},
		{Name: "Missingno", PrimaryType: "Bird"},
	}
	for i := range recs {
		recs[i].Normalize()
	}
	return recs
}

// ----------------------------------------------------------------------------
// Integrity Tests
// ----------------------------------------------------------------------------

func TestValidateIntegrityEmpty(t *testing.T) {
	res := ValidateIntegrity(core.Table{Header: core.CreatureColumns})
	if res.IsValid {
		t.Fatal("IsValid = true, want false")
	}
	if len(res.Issues) != 1 || res.Issues[0] != "table is empty" {
		t.Errorf("Issues = %v, want [table is empty]", res.Issues)
	}
	var ie *core.IntegrityError
	if err := res.Err(); !errors.As(err, &ie) || !errors.Is(err, core.ErrIntegrity) {
		t.Errorf("Err() = %v, want *IntegrityError", err)
	}
}

func TestValidateIntegrityMissingColumns(t *testing.T) {
	res := ValidateIntegrity(core.Table{
		Header: []string{"name"},
		Rows:   [][]string{{"Pikachu"}},
	})
	if res.IsValid {
		t.Fatal("IsValid = true, want false")
	}
	want := []string{"missing required column: id", "missing required column: primary_type"}
	if diff := cmp.Diff(want, res.Issues); diff != "" {
		t.Errorf("Issues mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateIntegrityWarnings(t *testing.T) {
	res := ValidateIntegrity(core.Table{
		Header: []string{"id", "name", "primary_type", "hp"},
		Rows: [][]string{
			{"1", "A", "Fire", "10"},
			{"1", "B", "", "ten"},
			{"", "C", "Water", "NA"},
			{"x", "D", "Grass", "5"},
		},
	})
	if !res.IsValid {
		t.Fatalf("IsValid = false, issues = %v", res.Issues)
	}
	want := []string{
		"column id has 1 null values",
		"column primary_type has 1 null values",
		"found 1 duplicate ids",
		"column id has 1 non-numeric values",
		"column hp has 1 non-numeric values",
	}
	if diff := cmp.Diff(want, res.Warnings); diff != "" {
		t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v, want nil", res.Err())
	}
}

func TestValidateRecords(t *testing.T) {
	res := ValidateRecords(sampleCreatures())
	if !res.IsValid {
		t.Fatalf("IsValid = false, issues = %v", res.Issues)
	}
	// Missingno has no id.
	if !slices.Contains(res.Warnings, "column id has 1 null values") {
		t.Errorf("Warnings = %v, want null id warning", res.Warnings)
	}
	if ValidateRecords(nil).IsValid {
		t.Error("ValidateRecords(nil).IsValid = true, want false")
	}
}

// ----------------------------------------------------------------------------
// Writer Tests
// ----------------------------------------------------------------------------

func TestOutputPath(t *testing.T) {
	l := newTestLoader()
	tests := []struct {
		path        string
		timestamped bool
		want        string
	}{
		{"out/creatures.csv", false, "out/creatures.csv"},
		{"out/creatures.csv", true, "out/creatures_20240309_140507.csv"},
		{"out/creatures", true, "out/creatures_20240309_140507"},
	}
	for _, tt := range tests {
		if got := l.OutputPath(tt.path, tt.timestamped); got != tt.want {
			t.Errorf("OutputPath(%q, %v) = %q, want %q", tt.path, tt.timestamped, got, tt.want)
		}
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	l := newTestLoader()
	recs := sampleCreatures()
	path := filepath.Join(t.TempDir(), "nested", "dir", "creatures.csv")

	got, err := l.WriteCSV(recs, path, true)
	if err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if filepath.Base(got) != "creatures_20240309_140507.csv" {
		t.Errorf("path = %q, want timestamped name", got)
	}

	tbl, err := extract.ReadAll(got)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if diff := cmp.Diff(core.CreaturesToTable(recs), tbl); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSON(t *testing.T) {
	l := newTestLoader()
	recs := sampleCreatures()
	path := filepath.Join(t.TempDir(), "creatures.json")

	got, err := l.WriteJSON(recs, path, false)
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "[\n  " {
		t.Errorf("output not 2-space indented: %q", data[:min(len(data), 20)])
	}

	var objs []map[string]any
	if err := json.Unmarshal(data, &objs); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(objs) != len(recs) {
		t.Fatalf("len = %d, want %d", len(objs), len(recs))
	}
	for _, col := range core.CreatureColumns {
		if _, ok := objs[0][col]; !ok {
			t.Errorf("object missing key %q", col)
		}
	}
	if objs[0]["type_combination"] != "Grass/Poison" {
		t.Errorf("type_combination = %v, want Grass/Poison", objs[0]["type_combination"])
	}
	if objs[3]["id"] != nil {
		t.Errorf("Missingno id = %v, want null", objs[3]["id"])
	}

	var back []core.Creature
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() into records error = %v", err)
	}
	if diff := cmp.Diff(recs, back); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteSpreadsheet(t *testing.T) {
	l := newTestLoader()
	recs := sampleCreatures()
	path := filepath.Join(t.TempDir(), "creatures.xlsx")

	got, err := l.WriteSpreadsheet(recs, path, false, "")
	if err != nil {
		t.Fatalf("WriteSpreadsheet() error = %v", err)
	}

	f, err := excelize.OpenFile(got)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{DefaultSheetName}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}
	rows, err := f.GetRows(DefaultSheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != len(recs)+1 {
		t.Fatalf("len(rows) = %d, want %d", len(rows), len(recs)+1)
	}
	if diff := cmp.Diff(core.CreatureColumns, rows[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if rows[1][1] != "Bulbasaur" || rows[1][0] != "1" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestWriteSpreadsheetNamedSheet(t *testing.T) {
	l := newTestLoader()
	path := filepath.Join(t.TempDir(), "creatures.xlsx")
	if _, err := l.WriteSpreadsheet(sampleCreatures(), path, false, "Pokemon"); err != nil {
		t.Fatalf("WriteSpreadsheet() error = %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); len(got) != 1 || got[0] != "Pokemon" {
		t.Errorf("GetSheetList() = %v, want [Pokemon]", got)
	}
}

func TestWriteFailureIsSinkError(t *testing.T) {
	l := newTestLoader()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file.
	path := filepath.Join(blocker, "creatures.csv")

	for _, sink := range Names() {
		s, _ := Get(sink)
		_, err := s.Write(l, sampleCreatures(), path+s.Ext, WriteOptions{})
		if !errors.Is(err, core.ErrPersistence) {
			t.Errorf("%s: error = %v, want ErrPersistence", sink, err)
			continue
		}
		var se *core.SinkError
		if !errors.As(err, &se) || se.Sink != sink {
			t.Errorf("%s: SinkError = %+v", sink, se)
		}
	}
}

// ----------------------------------------------------------------------------
// Registry / Summary Tests
// ----------------------------------------------------------------------------

func TestRegistry(t *testing.T) {
	if diff := cmp.Diff([]string{"csv", "json", "xlsx"}, Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if _, err := Lookup("parquet"); !errors.Is(err, core.ErrUnknownSink) {
		t.Errorf("Lookup(parquet) error = %v, want ErrUnknownSink", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register(Sink{Name: "csv"})
}

func TestSummary(t *testing.T) {
	l := newTestLoader()
	recs := sampleCreatures()
	s := l.Summary(recs)

	if s.Timestamp != "20240309_140507" {
		t.Errorf("Timestamp = %q", s.Timestamp)
	}
	if s.RecordCount != 4 {
		t.Errorf("RecordCount = %d, want 4", s.RecordCount)
	}
	if len(s.SampleRows) != 3 {
		t.Errorf("len(SampleRows) = %d, want 3", len(s.SampleRows))
	}
	if s.SampleRows[0][core.ColName] != "Bulbasaur" {
		t.Errorf("SampleRows[0] = %v", s.SampleRows[0])
	}
	if s.MemoryEstimate <= 0 {
		t.Errorf("MemoryEstimate = %d, want > 0", s.MemoryEstimate)
	}

	empty := l.Summary(nil)
	if empty.RecordCount != 0 || len(empty.SampleRows) != 0 {
		t.Errorf("Summary(nil) = %+v", empty)
	}
}
