package xlsxbatch

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusClosed, "closed"},
		{StatusNew, "new"},
		{StatusActive, "active"},
		{StatusReadingCell, "reading cell"},
		{StatusSkippingCell, "skipping cell"},
		{Status(9), "Status(9)"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, expected %q", tt.status, got, tt.expected)
		}
	}
}

func TestSheetDecodesCellTypes(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{})
	rows := drain(t, s)

	require.Equal(t, []models.RowNum{1, 2, 4, 5, 6}, rowNums(rows))
	assert.Equal(t, []models.CellValue{models.Shared("id"), models.Shared("name"), models.Shared("amount")}, rows[0].Cells)
	assert.Equal(t, []models.CellValue{models.Number(1), models.Shared("alice"), models.Date(44197)}, rows[1].Cells)
	assert.Equal(t, []models.CellValue{models.Number(2), models.Blank(), models.Bool(true)}, rows[2].Cells)
	assert.Equal(t, []models.CellValue{models.String("inline"), models.Error("#DIV/0!"), models.Time(0.5)}, rows[3].Cells)
	assert.Equal(t, []models.CellValue{models.Shared("Total"), models.Blank(), models.String("x")}, rows[4].Cells)
}

func TestSheetStatusTransitions(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{})
	assert.Equal(t, StatusNew, s.Status())
	_, ok := s.Dimension()
	assert.False(t, ok)

	_, err := s.NextRow()
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s.Status())
	dim, ok := s.Dimension()
	require.True(t, ok)
	assert.Equal(t, models.Address{Row: 6, Col: 3}, dim.BottomRight)

	drain(t, s)
	assert.Equal(t, StatusClosed, s.Status())

	_, err = s.NextRow()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSheetColumnWindow(t *testing.T) {
	tests := []struct {
		name     string
		opts     SheetOptions
		row      models.RowNum
		expected []models.CellValue
	}{
		{
			name:     "fixed right pads",
			opts:     SheetOptions{RightCol: 4},
			row:      4,
			expected: []models.CellValue{models.Number(2), models.Blank(), models.Bool(true), models.Blank()},
		},
		{
			name:     "left offset",
			opts:     SheetOptions{LeftCol: 2, RightCol: 3},
			row:      2,
			expected: []models.CellValue{models.Shared("alice"), models.Date(44197)},
		},
		{
			name:     "leading gap backfilled",
			opts:     SheetOptions{LeftCol: 2, RightCol: 3},
			row:      4,
			expected: []models.CellValue{models.Blank(), models.Bool(true)},
		},
		{
			name:     "single column",
			opts:     SheetOptions{LeftCol: 3, RightCol: 3},
			row:      5,
			expected: []models.CellValue{models.Time(0.5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSheet(t, testParts(), tt.opts)
			for _, row := range drain(t, s) {
				if row.Num == tt.row {
					assert.Equal(t, tt.expected, row.Cells)
					return
				}
			}
			t.Errorf("row %d not decoded", tt.row)
		})
	}
}

func TestSheetSkipsRowsWithoutCells(t *testing.T) {
	// Column B only holds values in rows 1, 2 and 5.
	s := openTestSheet(t, testParts(), SheetOptions{LeftCol: 2, RightCol: 2})
	assert.Equal(t, []models.RowNum{1, 2, 5}, rowNums(drain(t, s)))

	s = openTestSheet(t, testParts(), SheetOptions{SkipRows: 4})
	assert.Equal(t, []models.RowNum{5, 6}, rowNums(drain(t, s)))
}

func TestSheetMissingReferences(t *testing.T) {
	s := openTestSheet(t, withSheet(`<worksheet><sheetData>
<row><c><v>1</v></c><c><v>2</v></c></row>
<row><c t="s"><v>1</v></c></row>
<row r="7"><c r="B7"><v>3</v></c><c><v>4</v></c></row>
</sheetData></worksheet>`), SheetOptions{})
	rows := drain(t, s)
	require.Equal(t, []models.RowNum{1, 2, 7}, rowNums(rows))
	assert.Equal(t, []models.CellValue{models.Number(1), models.Number(2)}, rows[0].Cells)
	assert.Equal(t, []models.CellValue{models.Shared("name")}, rows[1].Cells)
	assert.Equal(t, []models.CellValue{models.Blank(), models.Number(3), models.Number(4)}, rows[2].Cells)
}

func TestSheetHeaderAndBatches(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{BatchSize: 2, FirstRowIsHeader: true})

	batch, err := s.NextBatch()
	require.NoError(t, err)
	assert.Equal(t, []models.RowNum{2, 4}, batch.Rows)

	header, err := s.HeaderRow()
	require.NoError(t, err)
	assert.Equal(t, models.RowNum(1), header.Num)
	assert.Equal(t, models.Shared("amount"), header.Cells[2])

	// The returned header is a copy.
	header.Cells[0] = models.Blank()
	again, err := s.HeaderRow()
	require.NoError(t, err)
	assert.Equal(t, models.Shared("id"), again.Cells[0])

	batch, err = s.NextBatch()
	require.NoError(t, err)
	assert.Equal(t, []models.RowNum{5, 6}, batch.Rows)

	_, err = s.NextBatch()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSheetBatchesIterator(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{BatchSize: 3})
	var sizes []int
	for batch, err := range s.Batches() {
		require.NoError(t, err)
		sizes = append(sizes, batch.Len())
	}
	assert.Equal(t, []int{3, 2}, sizes)
}

func TestSheetRemainingRows(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{SkipRows: 3})
	batch, err := s.RemainingRows()
	require.NoError(t, err)
	assert.Equal(t, []models.RowNum{4, 5, 6}, batch.Rows)

	batch, err = s.RemainingRows()
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestHeaderRowWithoutHeader(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{})
	_, err := s.HeaderRow()
	assert.ErrorIs(t, err, ErrConfiguration)

	empty := openTestSheet(t, withSheet(`<worksheet><sheetData/></worksheet>`), SheetOptions{FirstRowIsHeader: true})
	_, err = empty.HeaderRow()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSheetRowPredicates(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(s *Sheet) error
		expected []models.RowNum
	}{
		{
			name:     "skip until keeps the matching row",
			setup:    func(s *Sheet) error { return s.WithSkipUntil(map[string]string{"A": "2"}) },
			expected: []models.RowNum{4, 5, 6},
		},
		{
			name:     "read before drops the matching row",
			setup:    func(s *Sheet) error { return s.WithReadBefore(map[string]string{"A": "Total|Sum"}) },
			expected: []models.RowNum{1, 2, 4, 5},
		},
		{
			name: "skip matched all",
			setup: func(s *Sheet) error {
				return s.WithSkipMatched(map[string]string{"A": "2", "C": "true"}, MatchAll)
			},
			expected: []models.RowNum{1, 2, 5, 6},
		},
		{
			name: "skip matched any",
			setup: func(s *Sheet) error {
				return s.WithSkipMatched(map[string]string{"A": "1", "B": "#DIV/0!"}, MatchAny)
			},
			expected: []models.RowNum{1, 4, 6},
		},
		{
			name:     "blank cells match the empty candidate",
			setup:    func(s *Sheet) error { return s.WithSkipMatched(map[string]string{"B": ""}, MatchAll) },
			expected: []models.RowNum{1, 2, 5},
		},
		{
			name: "read before is only checked once skip until matched",
			setup: func(s *Sheet) error {
				if err := s.WithSkipUntil(map[string]string{"A": "2"}); err != nil {
					return err
				}
				return s.WithReadBefore(map[string]string{"A": "id|Total"})
			},
			expected: []models.RowNum{4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSheet(t, testParts(), SheetOptions{})
			require.NoError(t, tt.setup(s))
			assert.Equal(t, tt.expected, rowNums(drain(t, s)))
		})
	}
}

func TestSkipMatchedExemptsHeader(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{FirstRowIsHeader: true})
	require.NoError(t, s.WithSkipMatched(map[string]string{"A": "id|1"}, MatchAll))

	header, err := s.HeaderRow()
	require.NoError(t, err)
	assert.Equal(t, models.RowNum(1), header.Num)
	assert.Equal(t, []models.RowNum{4, 5, 6}, rowNums(drain(t, s)))
}

func TestSheetHeaderCheck(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{FirstRowIsHeader: true})
	require.NoError(t, s.WithHeaderCheck(map[string]string{"A": "id|ID", "C": "amount"}))
	_, err := s.HeaderRow()
	require.NoError(t, err)

	s = openTestSheet(t, testParts(), SheetOptions{FirstRowIsHeader: true})
	require.NoError(t, s.WithHeaderCheck(map[string]string{"B": "Name|NAME"}))
	_, err = s.NextBatch()
	assert.ErrorIs(t, err, ErrHeaderMismatch)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), `column B is "name"`)

	s = openTestSheet(t, testParts(), SheetOptions{})
	assert.ErrorIs(t, s.WithHeaderCheck(map[string]string{"A": "id"}), ErrConfiguration)
}

func TestSheetCaptureValues(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{FirstRowIsHeader: true})
	require.NoError(t, s.WithSkipUntil(map[string]string{"A": "2"}))
	require.NoError(t, s.WithCaptureValues(map[string]string{"B2": "who", "C2": "when", "A5": "late"}))

	_, err := s.CapturedValues()
	assert.ErrorIs(t, err, ErrConfiguration)

	header, err := s.HeaderRow()
	require.NoError(t, err)
	assert.Equal(t, models.RowNum(4), header.Num)

	captured, err := s.CapturedValues()
	require.NoError(t, err)
	assert.Equal(t, map[string]models.CellValue{
		"who":  models.Shared("alice"),
		"when": models.Date(44197),
	}, captured)

	// Captures stop once the header is taken.
	assert.Equal(t, []models.RowNum{5, 6}, rowNums(drain(t, s)))
	captured, err = s.CapturedValues()
	require.NoError(t, err)
	assert.NotContains(t, captured, "late")
}

func TestCaptureValuesRequiresHeader(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{})
	require.NoError(t, s.WithCaptureValues(map[string]string{"A1": "id"}))
	drain(t, s)
	_, err := s.CapturedValues()
	assert.ErrorIs(t, err, ErrConfiguration)

	s = openTestSheet(t, testParts(), SheetOptions{})
	assert.ErrorIs(t, s.WithCaptureValues(map[string]string{"A": "id"}), ErrInvalidAddress)
	s = openTestSheet(t, testParts(), SheetOptions{SkipRows: 1, LeftCol: 2, RightCol: 3, FirstRowIsHeader: true})
	for _, addr := range []string{"A2", "D2", "B1"} {
		assert.ErrorIs(t, s.WithCaptureValues(map[string]string{addr: "x"}), ErrConfiguration, addr)
	}
	require.NoError(t, s.WithCaptureValues(map[string]string{"B2": "x", "C3": "y"}))
}

func TestSheetConfigurationErrors(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{LeftCol: 2, RightCol: 3})
	assert.ErrorIs(t, s.WithSkipUntil(map[string]string{"A": "x"}), ErrConfiguration)
	assert.ErrorIs(t, s.WithReadBefore(map[string]string{"1A": "x"}), ErrInvalidAddress)

	_, err := s.NextRow()
	require.NoError(t, err)
	assert.ErrorIs(t, s.WithSkipUntil(map[string]string{"B": "x"}), ErrConfiguration)
	assert.ErrorIs(t, s.WithCaptureValues(map[string]string{"B1": "x"}), ErrConfiguration)
}

func TestSheetMergedRanges(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{})
	_, err := s.MergedRanges()
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = s.NextRow()
	require.NoError(t, err)
	_, err = s.MergedRanges()
	assert.ErrorIs(t, err, ErrConfiguration)

	drain(t, s)
	merged, err := s.MergedRanges()
	require.NoError(t, err)
	assert.Equal(t, []models.MergedRange{{
		TopLeft:     models.Address{Row: 6, Col: 1},
		BottomRight: models.Address{Row: 6, Col: 2},
	}}, merged)

	// A second call returns the same ranges.
	again, err := s.MergedRanges()
	require.NoError(t, err)
	assert.Equal(t, merged, again)
}

func TestMergedRangesAfterReadBefore(t *testing.T) {
	s := openTestSheet(t, testParts(), SheetOptions{})
	require.NoError(t, s.WithReadBefore(map[string]string{"A": "2"}))
	assert.Len(t, drain(t, s), 2)

	merged, err := s.MergedRanges()
	require.NoError(t, err)
	assert.Len(t, merged, 1)
}

func TestMergedRangesEdgeCases(t *testing.T) {
	s := openTestSheet(t, replaced(`<mergeCells count="1"><mergeCell ref="A6:B6"/></mergeCells>`, ""), SheetOptions{})
	drain(t, s)
	merged, err := s.MergedRanges()
	require.NoError(t, err)
	assert.Empty(t, merged)

	s = openTestSheet(t, replaced(`count="1"`, `count="2"`), SheetOptions{})
	drain(t, s)
	_, err = s.MergedRanges()
	assert.ErrorIs(t, err, ErrMergeCountMismatch)

	s = openTestSheet(t, replaced(`ref="A6:B6"`, `ref="A6"`), SheetOptions{})
	drain(t, s)
	_, err = s.MergedRanges()
	assert.ErrorIs(t, err, ErrInvalidAddress)

	s = openTestSheet(t, replaced(`<mergeCell ref="A6:B6"/>`, `<mergeCell/>`), SheetOptions{})
	drain(t, s)
	_, err = s.MergedRanges()
	assert.ErrorIs(t, err, ErrMissingAttribute)

	s = openTestSheet(t, testParts(), SheetOptions{})
	drain(t, s)
	require.NoError(t, s.Close())
	_, err = s.MergedRanges()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSheetDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		kind     error
		row      models.RowNum
	}{
		{"shared index out of range", `<c r="B2" t="s"><v>3</v>`, `<c r="B2" t="s"><v>99</v>`, ErrMalformedXML, 2},
		{"unknown style", `<c r="C2" s="1">`, `<c r="C2" s="9">`, ErrMalformedXML, 2},
		{"bad number", `<c r="A4"><v>2</v>`, `<c r="A4"><v>two</v>`, ErrMalformedXML, 4},
		{"bad address", `<c r="A4">`, `<c r="4A">`, ErrInvalidAddress, 4},
		{"bad row number", `<row r="5"`, `<row r="five"`, ErrMalformedXML, 5},
		{"broken xml", `</row>
<row r="6"`, `</rowx>
<row r="6"`, ErrMalformedXML, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSheet(t, replaced(tt.old, tt.new), SheetOptions{})
			var err error
			for err == nil {
				_, err = s.NextRow()
			}
			require.NotErrorIs(t, err, io.EOF)
			assert.ErrorIs(t, err, tt.kind)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, "Data", de.Sheet)
			assert.Equal(t, "xl/worksheets/sheet1.xml", de.Part)
			assert.Equal(t, tt.row, de.Row)

			// The sheet is abandoned after a decode error.
			_, err = s.NextRow()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}
