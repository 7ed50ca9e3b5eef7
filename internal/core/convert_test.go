package core

import "testing"

// ----------------------------------------------------------------------------
// IsMissing Tests
// ----------------------------------------------------------------------------

func TestIsMissing(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"NA", true},
		{"n/a", true},
		{"NaN", true},
		{"null", true},
		{"<NA>", true},
		{"#N/A", true},
		{"None", false},
		{"0", false},
		{"Grass", false},
	}

	for _, tt := range tests {
		if got := IsMissing(tt.input); got != tt.want {
			t.Errorf("IsMissing(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// ParseInt Tests
// ----------------------------------------------------------------------------

func TestParseInt(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int64
		wantOK bool
	}{
		{"plain integer", "49", 49, true},
		{"surrounding spaces", "  49 ", 49, true},
		{"negative", "-5", -5, true},
		{"decimal truncates", "45.9", 45, true},
		{"negative decimal truncates toward zero", "-2.5", -2, true},
		{"thousands separator", "1,200", 1200, true},
		{"excel formula prefix", `="318"`, 318, true},
		{"scientific notation", "1e2", 100, true},
		{"empty", "", 0, false},
		{"na token", "NA", 0, false},
		{"text", "abc", 0, false},
		{"mixed", "12abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInt(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseInt(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseInt(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseBool Tests
// ----------------------------------------------------------------------------

func TestParseBool(t *testing.T) {
	tests := []struct {
		input  string
		want   bool
		wantOK bool
	}{
		{"True", true, true},
		{"t", true, true},
		{"YES", true, true},
		{"y", true, true},
		{"1", true, true},
		{"False", false, true},
		{"f", false, true},
		{"no", false, true},
		{"N", false, true},
		{"0", false, true},
		{"", false, false},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		got, ok := ParseBool(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseBool(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

// ----------------------------------------------------------------------------
// CleanCell / HeaderIndex Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Bulbasaur  ", "Bulbasaur"},
		{`="001"`, "001"},
		{"=42", "42"},
		{`"quoted"`, "quoted"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{"#", "Name", " Type 1 ", "Sp. Atk", "name"})

	tests := []struct {
		key  string
		want int
	}{
		{"#", 0},
		{"name", 1}, // first occurrence wins
		{"type 1", 2},
		{"sp. atk", 3},
	}
	for _, tt := range tests {
		if got, ok := idx[tt.key]; !ok || got != tt.want {
			t.Errorf("idx[%q] = %d (ok=%v), want %d", tt.key, got, ok, tt.want)
		}
	}

	row := []string{"1", "Bulbasaur"}
	if got := idx.Cell(row, "Type 1"); got != "" {
		t.Errorf("Cell on short row = %q, want empty", got)
	}
	if got := idx.Cell(row, "NAME"); got != "Bulbasaur" {
		t.Errorf("Cell(NAME) = %q, want Bulbasaur", got)
	}
}

// ----------------------------------------------------------------------------
// Format Tests
// ----------------------------------------------------------------------------

func TestFormat(t *testing.T) {
	if got := FormatInt(nil); got != "" {
		t.Errorf("FormatInt(nil) = %q, want empty", got)
	}
	if got := FormatInt(Int64(-7)); got != "-7" {
		t.Errorf("FormatInt(-7) = %q, want -7", got)
	}
	if got := FormatFloat(Float64(0.5)); got != "0.5" {
		t.Errorf("FormatFloat(0.5) = %q, want 0.5", got)
	}
	if got := FormatFloat(nil); got != "" {
		t.Errorf("FormatFloat(nil) = %q, want empty", got)
	}
}
