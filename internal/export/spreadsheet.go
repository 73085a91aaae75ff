package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"camera-inspection-backend/internal/model"
)

const (
	sheetName  = "Inspections"
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	fillOK    = "C6EFCE"
	fillNotOK = "FFC7CE"
)

// Header is the first row of the spreadsheet export.
var Header = []string{
	"Employee ID", "Work Order", "Charge No", "Serial No", "Part No",
	"Unique No", "Status", "Date", "Time",
}

// statusColumn is the 1-based column holding the status.
const statusColumn = 7

// Row renders a record in Header order.
func Row(rec model.InspectionRecord) []string {
	return []string{
		rec.EmployeeID,
		rec.WorkOrder,
		rec.ChargeNo,
		rec.SerialNo,
		rec.PartNo,
		rec.UniqueNo,
		string(rec.Status),
		rec.Time.Format(dateLayout),
		rec.Time.Format(timeLayout),
	}
}

// WriteSpreadsheet saves rows as an xlsx workbook at path.
func WriteSpreadsheet(path string, rows []model.InspectionRecord) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// Spreadsheet streams rows as an xlsx workbook to w.
func Spreadsheet(w io.Writer, rows []model.InspectionRecord) error {
	f, err := buildWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(rows []model.InspectionRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCell(1), styles.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range rows {
		r := i + 2
		cells := Row(rec)
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		start, _ := excelize.CoordinatesToCellName(1, r)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", r, err)
		}

		cell, _ := excelize.CoordinatesToCellName(statusColumn, r)
		style := styles.ok
		if rec.Status == model.StatusNotOK {
			style = styles.notOK
		}
		if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to style row %d: %w", r, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "I", 16); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}
	return f, nil
}

type sheetStyles struct {
	header, ok, notOK int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	s.ok, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillOK}},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create OK style: %w", err)
	}
	s.notOK, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillNotOK}},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create NOT_OK style: %w", err)
	}
	return s, nil
}

func lastCell(row int) string {
	cell, _ := excelize.CoordinatesToCellName(len(Header), row)
	return cell
}
