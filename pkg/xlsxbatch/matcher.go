package xlsxbatch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/convert"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// MatchMode decides how the conditions of a RowMatcher combine.
type MatchMode uint8

const (
	// MatchAll requires every condition to hold.
	MatchAll MatchMode = iota
	// MatchAny requires at least one condition to hold.
	MatchAny
)

func (m MatchMode) String() string {
	if m == MatchAny {
		return "any"
	}
	return "all"
}

// CandidateSeparator splits the accepted values of one condition.
const CandidateSeparator = "|"

type condition struct {
	letters    string
	col        models.ColNum
	candidates []string
}

// RowMatcher tests rows against per-column candidate sets. A condition holds
// when the string form of the cell equals one of its candidates exactly.
type RowMatcher struct {
	mode  MatchMode
	conds []condition
}

// NewRowMatcher builds a matcher from column letters to "|"-separated
// candidates, e.g. {"A": "id|ID", "C": "name"}. An empty map gives a nil
// matcher, which matches nothing.
func NewRowMatcher(conds map[string]string, mode MatchMode) (*RowMatcher, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	m := &RowMatcher{mode: mode}
	for letters, values := range conds {
		col, err := cellref.ColumnToNumber(letters)
		if err != nil {
			return nil, err
		}
		m.conds = append(m.conds, condition{
			letters:    strings.ToUpper(letters),
			col:        col,
			candidates: strings.Split(values, CandidateSeparator),
		})
	}
	slices.SortFunc(m.conds, func(a, b condition) int { return int(a.col) - int(b.col) })
	return m, nil
}

// Columns returns the columns the matcher reads, in ascending order.
func (m *RowMatcher) Columns() []models.ColNum {
	if m == nil {
		return nil
	}
	cols := make([]models.ColNum, len(m.conds))
	for i, c := range m.conds {
		cols[i] = c.col
	}
	return cols
}

func cellAt(cells []models.CellValue, left, col models.ColNum) models.CellValue {
	if col < left || int(col-left) >= len(cells) {
		return models.Blank()
	}
	return cells[col-left]
}

func (c condition) holds(cells []models.CellValue, left models.ColNum) (string, bool) {
	text, _, err := convert.Default.String(cellAt(cells, left, c.col))
	if err != nil {
		return "", false
	}
	return text, slices.Contains(c.candidates, text)
}

// Match reports whether a row whose first cell is column left satisfies
// the matcher.
func (m *RowMatcher) Match(cells []models.CellValue, left models.ColNum) bool {
	if m == nil {
		return false
	}
	for _, c := range m.conds {
		_, ok := c.holds(cells, left)
		if ok && m.mode == MatchAny {
			return true
		}
		if !ok && m.mode == MatchAll {
			return false
		}
	}
	return m.mode == MatchAll
}

// Mismatch describes the first condition the row fails, or "" when the row
// satisfies the matcher.
func (m *RowMatcher) Mismatch(cells []models.CellValue, left models.ColNum) string {
	if m == nil || m.Match(cells, left) {
		return ""
	}
	for _, c := range m.conds {
		text, ok := c.holds(cells, left)
		if !ok {
			return fmt.Sprintf("column %s is %q, expected one of %q", c.letters, text, c.candidates)
		}
	}
	return fmt.Sprintf("no column matched any of %d conditions", len(m.conds))
}
