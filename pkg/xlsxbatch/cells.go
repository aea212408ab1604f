package xlsxbatch

import (
	"math"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/convert"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// CellRowOf converts a decoded row into its JSON view keyed by column
// letters. Blank cells are omitted; ok is false when nothing remains.
func CellRowOf(row models.Row, left models.ColNum) (models.CellRow, bool) {
	cellMap := make(map[string]interface{})
	for i, v := range row.Cells {
		if v.IsBlank() {
			continue
		}
		letters, err := cellref.NumberToColumn(left + models.ColNum(i))
		if err != nil {
			continue
		}
		cellMap[letters] = JSONValue(v)
	}
	if len(cellMap) == 0 {
		return models.CellRow{}, false
	}
	return models.CellRow{R: int(row.Num), C: cellMap}, true
}

// JSONValue returns the natural JSON value of a cell: int64 for integral
// numbers, float64 for other numbers, bool, and text for everything else.
// Dates and times render as ISO text.
func JSONValue(v models.CellValue) interface{} {
	switch v.Kind() {
	case models.KindBlank:
		return nil
	case models.KindBool:
		return v.BoolValue()
	case models.KindNumber:
		return parseValue(v.Float())
	}
	s, _, _ := convert.Default.String(v)
	return s
}

// parseValue returns int64 for integral numbers and float64 otherwise.
func parseValue(f float64) interface{} {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
