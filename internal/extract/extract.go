// Package extract reads raw creature tables from delimited text files.
//
// Input is decoded as UTF-8 with an optional byte order mark; invalid byte
// sequences are replaced rather than rejected. Ragged rows are accepted and
// padded to the header width, quotes are parsed leniently, and fully empty
// rows are skipped.
package extract

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/creature-etl/internal/core"
)

// SampleSize is the number of rows ReadInfo returns as a preview.
const SampleSize = 5

// Info is the pre-flight description of an input file.
type Info struct {
	Path        string              `json:"path"`
	RecordCount int                 `json:"record_count"`
	Columns     []string            `json:"columns"`
	SampleRows  []map[string]string `json:"sample_rows"`
}

// ReadInfo describes the file at path without loading it: the header, the
// first SampleSize rows, and the number of lines after the header.
func ReadInfo(path string) (Info, error) {
	sample, err := ReadFirstN(path, SampleSize)
	if err != nil {
		return Info{}, err
	}

	f, err := open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	lines, err := countLines(f)
	if err != nil {
		return Info{}, fmt.Errorf("count lines in %s: %w", path, err)
	}
	count := lines - 1
	if count < 0 {
		count = 0
	}

	return Info{
		Path:        path,
		RecordCount: count,
		Columns:     sample.Header,
		SampleRows:  sample.Records(),
	}, nil
}

// ReadAll loads every row of the file at path.
func ReadAll(path string) (core.Table, error) {
	return ReadFirstN(path, 0)
}

// ReadFirstN loads at most n data rows of the file at path.
// n <= 0 loads all rows.
func ReadFirstN(path string, n int) (core.Table, error) {
	f, err := open(path)
	if err != nil {
		return core.Table{}, err
	}
	defer f.Close()

	t, err := Read(f, n)
	if err != nil {
		return core.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Read parses delimited text from r, keeping at most n data rows
// (n <= 0 keeps all). The first non-empty row is the header.
func Read(r io.Reader, n int) (core.Table, error) {
	cr := csv.NewReader(wrap(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var t core.Table
	for {
		if n > 0 && len(t.Rows) >= n {
			break
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Table{}, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		if isEmptyRow(rec) {
			continue
		}

		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, fitRow(rec, len(t.Header)))
	}

	if t.Header == nil {
		return core.Table{}, fmt.Errorf("%w: no header row", core.ErrParse)
	}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	return t, nil
}

// wrap strips a leading BOM and replaces invalid UTF-8.
func wrap(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", core.ErrParse, path)
	}
	return f, nil
}

// countLines counts newline-terminated lines plus a final unterminated one.
func countLines(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 64*1024)

	count := 0
	var last byte
	for {
		n, err := br.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != 0 && last != '\n' {
		count++
	}
	return count, nil
}

// fitRow pads short rows with empty cells and drops cells past the header.
func fitRow(rec []string, width int) []string {
	row := make([]string, width)
	copy(row, rec)
	return row
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
