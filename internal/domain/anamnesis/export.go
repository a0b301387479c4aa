package anamnesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/signintech/gopdf"
)

// PDFExporter renders a record as a printable summary for clinicians.
type PDFExporter struct {
	FontPath string
}

func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{FontPath: fontPath}
}

const pdfTextWidth = 500

// Render produces the PDF bytes for a record.
func (e *PDFExporter) Render(rec *Record) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("main", e.FontPath); err != nil {
		return nil, fmt.Errorf("loading PDF font %s: %w", e.FontPath, err)
	}

	if err := pdf.SetFont("main", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Anamnesis Summary")
	pdf.Br(28)

	if err := pdf.SetFont("main", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Patient: %s", rec.PatientID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Version: %s", rec.VersionID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Last updated: %s by %s",
		rec.UpdatedAt.Format("2006-01-02 15:04 MST"), rec.LastEditedBy))
	pdf.Br(22)

	names := make([]string, 0, len(rec.Sections))
	for name := range rec.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := pdf.SetFont("main", "", 13); err != nil {
			return nil, err
		}
		pdf.Cell(nil, name)
		pdf.Br(16)

		if err := pdf.SetFont("main", "", 10); err != nil {
			return nil, err
		}
		for _, line := range sectionLines(rec.Sections[name]) {
			wrapped, err := pdf.SplitText(line, pdfTextWidth)
			if err != nil {
				wrapped = []string{line}
			}
			for _, l := range wrapped {
				pdf.Cell(nil, l)
				pdf.Br(12)
			}
		}
		pdf.Br(8)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// sectionLines flattens one level of a section object into "key: value"
// lines. Nested structures are printed as compact JSON.
func sectionLines(body json.RawMessage) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return []string{string(body)}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(obj))
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(obj[k], &s); err != nil {
			s = string(obj[k])
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, s))
	}
	return lines
}
