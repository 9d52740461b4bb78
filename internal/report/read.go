package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// MetricsSheet is the default sheet name read by ReadMetrics.
const MetricsSheet = "Metrics"

// Observation is one metric value read from a spreadsheet.
type Observation struct {
	Name       string
	Value      float64
	ObservedAt time.Time
}

// ReadSheet returns the named sheet of an XLSX file as rows of strings.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open file")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("report: sheet %q not found", name)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// ReadMetrics reads metric observations from a sheet whose header row has
// "metric_name" and "value" columns and an optional "observed_at" column.
// Rows without an observed_at use defaultAt. Blank rows are skipped.
func ReadMetrics(path, sheet string, defaultAt time.Time) ([]Observation, error) {
	if sheet == "" {
		sheet = MetricsSheet
	}
	rows, err := ReadSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("report: sheet %q is empty", sheet)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameCol, ok := cols["metric_name"]
	if !ok {
		return nil, eris.Errorf("report: sheet %q has no metric_name column", sheet)
	}
	valueCol, ok := cols["value"]
	if !ok {
		return nil, eris.Errorf("report: sheet %q has no value column", sheet)
	}
	atCol, hasAt := cols["observed_at"]

	var out []Observation
	for i, row := range rows[1:] {
		line := i + 2
		name := strings.TrimSpace(cell(row, nameCol))
		raw := strings.TrimSpace(cell(row, valueCol))
		if name == "" && raw == "" {
			continue
		}
		if name == "" {
			return nil, eris.Errorf("report: row %d: missing metric_name", line)
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "report: row %d: parse value %q", line, raw)
		}

		at := defaultAt
		if hasAt {
			if s := strings.TrimSpace(cell(row, atCol)); s != "" {
				at, err = parseObservedAt(s)
				if err != nil {
					return nil, eris.Wrapf(err, "report: row %d", line)
				}
			}
		}
		out = append(out, Observation{Name: name, Value: v, ObservedAt: at})
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func parseObservedAt(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("parse observed_at %q", s)
}
