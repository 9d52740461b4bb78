// Package report renders covenants and alerts into an XLSX workbook.
package report

import (
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/covenant-monitor/internal/model"
)

// Sheet names.
const (
	CovenantsSheet = "Covenants"
	AlertsSheet    = "Alerts"
)

var covenantHeader = []string{
	"ID", "Document", "Name", "Type", "Threshold", "Current Value", "Directionality",
	"Frequency", "Status", "Needs Review", "Formula", "Last Checked", "Last Updated",
}

var alertHeader = []string{
	"ID", "Covenant", "Type", "Status", "Message", "Created", "Resolved", "Resolution Notes",
}

// Data is the content of one report.
type Data struct {
	Covenants []model.Covenant
	Alerts    []model.Alert
}

// Build creates the workbook.
func Build(d Data) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(CovenantsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add covenants sheet")
	}
	addHeader(sheet, covenantHeader)
	for i := range d.Covenants {
		c := &d.Covenants[i]
		row := sheet.AddRow()
		addStrings(row, c.ID, c.DocumentID, c.Name, c.Type)
		addFloat(row, c.ThresholdValue)
		addFloat(row, c.CurrentValue)
		addStrings(row, string(c.Directionality), string(c.MeasurementFrequency),
			string(c.ComplianceStatus), strconv.FormatBool(c.NeedsReview), c.Formula)
		addTime(row, &c.LastChecked)
		addTime(row, c.LastUpdated)
	}

	sheet, err = f.AddSheet(AlertsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "report: add alerts sheet")
	}
	addHeader(sheet, alertHeader)
	for i := range d.Alerts {
		a := &d.Alerts[i]
		row := sheet.AddRow()
		addStrings(row, a.ID, a.CovenantID, string(a.Type), string(a.Status), a.Message)
		addTime(row, &a.CreatedAt)
		addTime(row, a.ResolvedAt)
		addStrings(row, a.ResolutionNotes)
	}
	return f, nil
}

// Write renders the report to w.
func Write(w io.Writer, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write workbook")
}

// Save renders the report to a file.
func Save(path string, d Data) error {
	f, err := Build(d)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		cell := row.AddCell()
		cell.SetString(n)
		cell.GetStyle().Font.Bold = true
	}
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}

func addTime(row *xlsx.Row, t *time.Time) {
	cell := row.AddCell()
	if t != nil && !t.IsZero() {
		cell.SetString(t.UTC().Format(time.RFC3339))
	}
}
