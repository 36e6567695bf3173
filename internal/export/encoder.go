// Package export encodes tabular report data into downloadable byte
// streams. Encoders are pure: same input, same output, no I/O.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/crewviz/reportd/internal/domain"
	"github.com/jung-kurt/gofpdf/v2"
)

// maxPDFRows bounds the PDF content stream: only the first 200 rows are
// rendered, with a truncation note when rows are dropped.
const maxPDFRows = 200

// Encode dispatches to the encoder for the given format. FormatView has
// no encoded representation and is rejected.
func Encode(format domain.ReportFormat, title string, headers []string, rows [][]string) ([]byte, error) {
	switch format {
	case domain.FormatCSV:
		return EncodeCSV(headers, rows)
	case domain.FormatTSV:
		return EncodeTSV(headers, rows), nil
	case domain.FormatPDF:
		return EncodePDF(title, headers, rows)
	default:
		return nil, fmt.Errorf("%w: no encoder for %q", domain.ErrInvalidReportFormat, format)
	}
}

// ContentType returns the MIME type served for the given format.
func ContentType(format domain.ReportFormat) string {
	switch format {
	case domain.FormatCSV:
		return "text/csv"
	case domain.FormatTSV:
		return "text/tab-separated-values"
	case domain.FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// EncodeCSV produces RFC 4180 output: fields containing commas, quotes,
// or newlines are quoted with internal quotes doubled; the header row
// comes first.
func EncodeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeTSV produces tab-joined output with a header row first.
// Embedded tabs in a field are replaced with a single space; the
// substitution is lossy by design since TSV has no quoting convention.
func EncodeTSV(headers []string, rows [][]string) []byte {
	var buf bytes.Buffer
	writeTSVRow(&buf, headers)
	for _, row := range rows {
		writeTSVRow(&buf, row)
	}
	return buf.Bytes()
}

func writeTSVRow(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte('\t')
		}
		field = strings.ReplaceAll(field, "\t", " ")
		field = strings.ReplaceAll(field, "\n", " ")
		buf.WriteString(field)
	}
	buf.WriteByte('\n')
}

// EncodePDF produces a minimal text-layout PDF document: the title
// followed by the header and rows rendered as plain monospace lines with
// pipe-joined columns. Rendering is capped at maxPDFRows rows.
func EncodePDF(title string, headers []string, rows [][]string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Courier", "B", 9)
	pdf.MultiCell(0, 5, joinColumns(headers), "", "L", false)

	pdf.SetFont("Courier", "", 9)
	rendered := rows
	truncated := false
	if len(rendered) > maxPDFRows {
		rendered = rendered[:maxPDFRows]
		truncated = true
	}
	for _, row := range rendered {
		pdf.MultiCell(0, 5, joinColumns(row), "", "L", false)
	}
	if truncated {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5,
			fmt.Sprintf("Showing first %d of %d rows.", maxPDFRows, len(rows)),
			"", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func joinColumns(fields []string) string {
	return strings.Join(fields, " | ")
}
