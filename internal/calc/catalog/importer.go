package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"Pylon/internal/calc/calcerr"
)

// Spreadsheet layout: first sheet, one header row, then
// family, designation, material, S (in³), I (in⁴), weight (plf), Fy (ksi).
var xlsxColumns = []string{"family", "designation", "material", "section_modulus_in3",
	"moment_of_inertia_in4", "weight_per_length_plf", "yield_strength_ksi"}

// LoadXLSX reads a catalog workbook. Blank rows are skipped; any malformed row
// fails the whole load with one field error per bad cell.
func LoadXLSX(r io.Reader, name, version string) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &calcerr.Error{Op: "catalog.load_xlsx", Kind: calcerr.KindInvalidInput, Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &calcerr.Error{Op: "catalog.load_xlsx", Kind: calcerr.KindInvalidInput, Err: err}
	}
	if len(rows) < 2 {
		return nil, &calcerr.Error{Op: "catalog.load_xlsx", Kind: calcerr.KindInvalidInput,
			Err: fmt.Errorf("sheet %q has no data rows", sheet)}
	}

	v := calcerr.NewValidator("catalog.load_xlsx")
	members := make([]Member, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		m, ok := parseRow(v, i, row)
		if ok {
			members = append(members, m)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return New(name, version, members)
}

func parseRow(v *calcerr.Validator, i int, row []string) (Member, bool) {
	cell := func(c int) string {
		if c < len(row) {
			return strings.TrimSpace(row[c])
		}
		return ""
	}
	path := func(c int) string {
		return fmt.Sprintf("rows[%d].%s", i+1, xlsxColumns[c])
	}

	ok := true
	num := func(c int) float64 {
		s := cell(c)
		if s == "" {
			v.Add(path(c), "is required")
			ok = false
			return 0
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			v.Add(path(c), "not a number: %q", s)
			ok = false
			return 0
		}
		return x
	}
	text := func(c int) string {
		s := cell(c)
		if s == "" {
			v.Add(path(c), "is required")
			ok = false
		}
		return s
	}

	m := Member{
		Family:             text(0),
		Designation:        text(1),
		Material:           text(2),
		SectionModulusIn3:  num(3),
		MomentOfInertiaIn4: num(4),
		WeightPerLengthPlf: num(5),
		YieldStrengthKsi:   num(6),
	}
	return m, ok
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
