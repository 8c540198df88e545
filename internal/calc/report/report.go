package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"Pylon/internal/calc/envelope"
)

// Document is one calculation envelope plus the cover details printed above it.
type Document struct {
	Project  string            `json:"project"`
	Author   string            `json:"author"`
	Title    string            `json:"title"`
	Notes    string            `json:"notes"`
	Envelope envelope.Envelope `json:"envelope"`
}

var ErrNoResult = errors.New("report: envelope has no result")

// The core fonts are cp1252; these have no glyph there.
var asciiSymbols = strings.NewReplacer(
	"≥", ">=", "≤", "<=", "≠", "!=", "≈", "~",
	"Ω", "omega", "φ", "phi", "Φ", "phi", "Δ", "delta",
	"√", "sqrt", "⁴", "^4", "−", "-",
)

func plain(s string) string { return asciiSymbols.Replace(s) }

// Render writes doc as a PDF. The date is printed on the cover and stamped as
// the creation date so the same document renders to the same bytes.
func Render(w io.Writer, doc Document, date time.Time) error {
	env := doc.Envelope
	if env.Result == nil || env.ContentHash == "" {
		return ErrNoResult
	}
	if doc.Title == "" {
		doc.Title = "Sign Structure Calculation"
	}
	body, err := json.MarshalIndent(env.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode result: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(date)
	pdf.SetModificationDate(date)
	pdf.SetCatalogSort(true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(plain(s)) }
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, text(doc.Title))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, text(fmt.Sprintf("Project: %s", doc.Project)))
	pdf.Ln(6)
	pdf.Cell(0, 6, text(fmt.Sprintf("Author: %s", doc.Author)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", date.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Confidence: %.2f", env.Confidence))
	pdf.Ln(6)
	pdf.SetFont("Courier", "", 8)
	pdf.Cell(0, 5, "sha256 "+env.ContentHash)
	pdf.Ln(8)

	if doc.Notes != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, text(doc.Notes), "", "L", false)
		pdf.Ln(4)
	}

	section(pdf, "Versions")
	versionTable(pdf, "solver", env.SolverVersions)
	versionTable(pdf, "constants", env.ConstantsVersion)
	pdf.Ln(4)

	section(pdf, "Assumptions")
	pdf.SetFont("Helvetica", "", 10)
	for i, a := range env.Assumptions {
		pdf.MultiCell(0, 5, text(fmt.Sprintf("%d. %s", i+1, a)), "", "L", false)
	}
	if len(env.Warnings) > 0 {
		pdf.Ln(4)
		section(pdf, "Warnings")
		pdf.SetFont("Helvetica", "", 10)
		for _, wn := range env.Warnings {
			pdf.MultiCell(0, 5, text(fmt.Sprintf("[%s] %s", wn.Category, wn.Message)), "", "L", false)
		}
	}
	pdf.Ln(4)

	section(pdf, "Result")
	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, text(string(body)), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: write pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
}

func versionTable(pdf *gofpdf.Fpdf, kind string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pdf.SetFont("Helvetica", "", 9)
	for _, k := range keys {
		pdf.CellFormat(30, 5, kind, "1", 0, "L", false, 0, "")
		pdf.CellFormat(90, 5, k, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 5, m[k], "1", 1, "L", false, 0, "")
	}
}
