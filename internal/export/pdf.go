package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"log"
	"time"

	"github.com/go-pdf/fpdf"

	"camera-inspection-backend/internal/capture"
	"camera-inspection-backend/internal/model"
)

// Thumbnail bounding box used for report rows, in pixels.
const (
	ThumbWidth  = 240
	ThumbHeight = 140
)

// Layout of the A4 landscape sheet, in millimetres.
const (
	pageMargin = 10.0
	rowHeight  = 28.0
	thumbW     = 40.0
	thumbH     = rowHeight - 4
	lineHeight = 5.0
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Employee ID", 28},
	{"Work Order", 28},
	{"Charge No", 34},
	{"Serial No", 18},
	{"Part No", 24},
	{"Unique No", 22},
	{"Status", 20},
	{"Date", 24},
	{"Time", 20},
}

// PDF streams an inspection sheet for rows to w. Records with an image get
// a thumbnail in the first column.
func PDF(w io.Writer, title string, rows []model.InspectionRecord) error {
	data, err := GeneratePDF(title, rows, time.Now())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// GeneratePDF renders the inspection sheet in memory.
func GeneratePDF(title string, rows []model.InspectionRecord, generated time.Time) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	_, pageH := pdf.GetPageSize()

	drawHeader := func() {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, lineHeight, "Generated "+generated.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(thumbW+4, 7, "Image", "1", 0, "C", true, 0, "")
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	drawHeader()
	if len(rows) == 0 {
		pdf.CellFormat(0, 10, "No inspections in the selected range.", "", 1, "L", false, 0, "")
	}

	for i, rec := range rows {
		if pdf.GetY()+rowHeight > pageH-pageMargin {
			drawHeader()
		}
		x, y := pdf.GetXY()

		pdf.CellFormat(thumbW+4, rowHeight, "", "1", 0, "C", false, 0, "")
		if len(rec.Image) > 0 {
			if err := placeThumbnail(pdf, fmt.Sprintf("rec%d_%d", i, rec.ID), rec.Image, x+2, y+2); err != nil {
				log.Printf("Skipping image of inspection %d in PDF: %v", rec.ID, err)
			}
		}

		cells := Row(rec)
		for j, c := range pdfColumns {
			fill := false
			if j == statusColumn-1 {
				fill = true
				if rec.Status == model.StatusNotOK {
					pdf.SetFillColor(0xFF, 0xC7, 0xCE)
				} else {
					pdf.SetFillColor(0xC6, 0xEF, 0xCE)
				}
			}
			pdf.CellFormat(c.width, rowHeight, cells[j], "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return out.Bytes(), nil
}

// placeThumbnail draws a scaled copy of img centred in the image cell whose
// inner top-left corner is (x, y).
func placeThumbnail(pdf *fpdf.Fpdf, name string, img []byte, x, y float64) error {
	thumb, err := capture.Thumbnail(img, ThumbWidth, ThumbHeight)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		return fmt.Errorf("decode thumbnail config: %w", err)
	}

	w, h := thumbW, thumbW*float64(cfg.Height)/float64(cfg.Width)
	if h > thumbH {
		w, h = thumbH*float64(cfg.Width)/float64(cfg.Height), thumbH
	}
	x += (thumbW - w) / 2
	y += (thumbH - h) / 2

	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPEG"}, bytes.NewReader(thumb))
	pdf.ImageOptions(name, x, y, w, h, false, fpdf.ImageOptions{}, 0, "")
	return pdf.Error()
}
