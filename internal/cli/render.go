package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"

	"github.com/JonMunkholm/creature-etl/internal/core"
	"github.com/JonMunkholm/creature-etl/internal/extract"
	"github.com/JonMunkholm/creature-etl/internal/pipeline"
)

// sampleColumns are shown for sample rows; the full width does not fit a
// terminal.
var sampleColumns = []string{
	core.ColID, core.ColName, core.ColTypeCombination, core.ColTotalPower,
	core.ColPowerCategory, core.ColIsLegendary, core.ColVariantForm,
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault
	return t
}

func render(w io.Writer, t table.Writer) {
	t.Render()
	io.WriteString(w, "\n")
}

// renderRun prints the outcome of a run: stages, cleaning report, integrity,
// sinks and a few sample rows.
func renderRun(w io.Writer, res *pipeline.RunResult) {
	t := newTable(w, fmt.Sprintf("Run %s (%s)", res.RunID, res.Status))
	t.AppendHeader(table.Row{"Stage", "Duration"})
	for _, stage := range []string{pipeline.StageExtract, pipeline.StageClean, pipeline.StageLoad} {
		if d, ok := res.Durations[stage]; ok {
			t.AppendRow(table.Row{stage, d.Round(time.Microsecond)})
		}
	}
	t.AppendFooter(table.Row{"total", res.FinishedAt.Sub(res.StartedAt).Round(time.Microsecond)})
	render(w, t)

	rep := res.Report
	t = newTable(w, "Cleaning")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"input rows", rep.InputRows},
		{"output rows", rep.OutputRows},
		{"exact duplicates", rep.ExactDuplicates},
		{"name duplicates", rep.NameDuplicates},
		{"rows removed", rep.RemovedRows()},
		{"warnings", len(rep.Warnings)},
	})
	for _, col := range sortedKeys(rep.Filled) {
		t.AppendRow(table.Row{"filled " + col, fmt.Sprintf("%d (%s)", rep.Filled[col], rep.FillValues[col])})
	}
	for _, col := range sortedKeys(rep.Coerced) {
		t.AppendRow(table.Row{"coerced " + col, rep.Coerced[col]})
	}
	for _, col := range sortedKeys(rep.Clamped) {
		t.AppendRow(table.Row{"clamped " + col, rep.Clamped[col]})
	}
	render(w, t)

	if len(res.Integrity.Warnings) > 0 || len(res.Integrity.Issues) > 0 {
		t = newTable(w, "Integrity")
		t.AppendHeader(table.Row{"Level", "Message"})
		for _, s := range res.Integrity.Issues {
			t.AppendRow(table.Row{"issue", s})
		}
		for _, s := range res.Integrity.Warnings {
			t.AppendRow(table.Row{"warning", s})
		}
		render(w, t)
	}

	if len(res.Sinks) > 0 {
		t = newTable(w, "Sinks")
		t.AppendHeader(table.Row{"Sink", "Path", "Rows", "Error"})
		for _, s := range res.Sinks {
			t.AppendRow(table.Row{s.Sink, s.Path, s.Rows, s.Error})
		}
		render(w, t)
	}

	if len(res.Load.SampleRows) > 0 {
		renderSample(w, "Sample", res.Load.SampleRows, sampleColumns)
	}
}

// renderInfo prints what ReadInfo found in an input file.
func renderInfo(w io.Writer, info extract.Info) {
	t := newTable(w, "Input")
	t.AppendRows([]table.Row{
		{"path", info.Path},
		{"records", info.RecordCount},
		{"columns", strings.Join(info.Columns, ", ")},
	})
	render(w, t)

	if len(info.SampleRows) > 0 {
		renderSample(w, "Sample", info.SampleRows, info.Columns)
	}
}

func renderSample(w io.Writer, title string, rows []map[string]string, cols []string) {
	t := newTable(w, title)
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = r[c]
		}
		t.AppendRow(row)
	}
	render(w, t)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
