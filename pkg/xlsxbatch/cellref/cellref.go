// Package cellref converts between A1-style spreadsheet references and
// 1-based numeric coordinates.
//
// Column letters are bijective base-26: there is no zero digit, so A=1,
// Z=26, AA=27.
package cellref

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// ErrInvalidAddress indicates an unparsable or out-of-range cell reference.
var ErrInvalidAddress = errors.New("invalid address")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidAddress}, args...)...)
}

// maxColumnLetters is the length of "XFD", the last column.
const maxColumnLetters = 3

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func lettersToNumber(letters string) (models.ColNum, error) {
	if len(letters) > maxColumnLetters {
		return 0, invalid("column %q beyond %d", letters, models.MaxColumns)
	}
	col, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, invalid("column %q: %v", letters, err)
	}
	return models.ColNum(col), nil
}

// ColumnToNumber converts column letters to a column number: "D" gives 4.
// A trailing row number is tolerated, so "B3" gives 2.
func ColumnToNumber(letters string) (models.ColNum, error) {
	name := strings.ReplaceAll(letters, "$", "")
	if hasDigit(name) {
		col, _, err := excelize.SplitCellName(name)
		if err != nil {
			return 0, invalid("column %q: %v", letters, err)
		}
		name = col
	}
	return lettersToNumber(name)
}

// NumberToColumn converts a column number to letters: 4 gives "D".
func NumberToColumn(n models.ColNum) (string, error) {
	name, err := excelize.ColumnNumberToName(int(n))
	if err != nil {
		return "", invalid("column number %d: %v", n, err)
	}
	return name, nil
}

// ParseAddress converts an A1 reference to (row, col): "D2" gives (2, 4).
func ParseAddress(addr string) (models.RowNum, models.ColNum, error) {
	name := strings.TrimSpace(addr)
	letters, _, err := excelize.SplitCellName(name)
	if err != nil {
		return 0, 0, invalid("%q: %v", addr, err)
	}
	if len(letters) > maxColumnLetters {
		return 0, 0, invalid("column in %q", addr)
	}
	col, row, err := excelize.CellNameToCoordinates(name)
	if err != nil {
		return 0, 0, invalid("%q: %v", addr, err)
	}
	return models.RowNum(row), models.ColNum(col), nil
}

// FormatAddress converts (row, col) to an A1 reference: (2, 4) gives "D2".
func FormatAddress(row models.RowNum, col models.ColNum) (string, error) {
	name, err := excelize.CoordinatesToCellName(int(col), int(row))
	if err != nil {
		return "", invalid("(%d, %d): %v", row, col, err)
	}
	return name, nil
}

// ParseRange parses a "TopLeft:BottomRight" reference such as "A1:C3".
func ParseRange(ref string) (models.MergedRange, error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 {
		return models.MergedRange{}, invalid("range %q", ref)
	}
	return parseCorners(parts[0], parts[1])
}

// ParseRangeLoose is ParseRange that also accepts a single cell, which is
// then both corners of the range.
func ParseRangeLoose(ref string) (models.MergedRange, error) {
	parts := strings.Split(ref, ":")
	switch len(parts) {
	case 1:
		return parseCorners(parts[0], parts[0])
	case 2:
		return parseCorners(parts[0], parts[1])
	}
	return models.MergedRange{}, invalid("range %q", ref)
}

func parseCorners(from, to string) (models.MergedRange, error) {
	r1, c1, err := ParseAddress(from)
	if err != nil {
		return models.MergedRange{}, err
	}
	r2, c2, err := ParseAddress(to)
	if err != nil {
		return models.MergedRange{}, err
	}
	return models.MergedRange{
		TopLeft:     models.Address{Row: r1, Col: c1},
		BottomRight: models.Address{Row: r2, Col: c2},
	}, nil
}

// FormatRange renders a range as "A1:C3".
func FormatRange(m models.MergedRange) (string, error) {
	from, err := FormatAddress(m.TopLeft.Row, m.TopLeft.Col)
	if err != nil {
		return "", err
	}
	to, err := FormatAddress(m.BottomRight.Row, m.BottomRight.Col)
	if err != nil {
		return "", err
	}
	return from + ":" + to, nil
}

// IsMergedCell reports whether (row, col) falls inside one of ranges. When
// the cell is the top-left anchor of its range the range extent is returned
// as well. The first matching range wins.
func IsMergedCell(ranges []models.MergedRange, row models.RowNum, col models.ColNum) (bool, *models.Extent) {
	for _, m := range ranges {
		if !m.Contains(row, col) {
			continue
		}
		if m.TopLeft.Row == row && m.TopLeft.Col == col {
			ext := m.Extent()
			return true, &ext
		}
		return true, nil
	}
	return false, nil
}
