package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

var (
	// ErrWriterClosed indicates a write after the workbook was saved or closed.
	ErrWriterClosed = errors.New("cannot write saved workbook")
	// ErrColumnsNotSet indicates a by-name append to a sheet without columns.
	ErrColumnsNotSet = errors.New("columns not set")
	// ErrUnknownColumn indicates a by-name append naming a column that was
	// not declared with WithColumns.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrLengthMismatch indicates row numbers and rows of different length.
	ErrLengthMismatch = errors.New("row numbers and rows differ in length")
)

// Built-in number formats used for serial cells.
const (
	numFmtDate     = 14
	numFmtTime     = 21
	numFmtDatetime = 22
)

type sheetWriter struct {
	stream *excelize.StreamWriter
	next   int
}

type columnSpec struct {
	names    []string
	addToTop bool
}

// Writer appends decoded rows to the sheets of a new workbook. Sheets are
// created on first use. A Writer saves once.
type Writer struct {
	file    *excelize.File
	sheets  map[string]*sheetWriter
	order   []string
	columns map[string]columnSpec
	styles  map[models.Kind]int
	saved   bool
	closed  bool
	log     *zap.Logger
}

// NewWriter returns an empty workbook writer. A nil logger disables logging.
func NewWriter(log *zap.Logger) (*Writer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f := excelize.NewFile()
	w := &Writer{
		file:    f,
		sheets:  make(map[string]*sheetWriter),
		columns: make(map[string]columnSpec),
		styles:  make(map[models.Kind]int, 3),
		log:     log,
	}
	for kind, numFmt := range map[models.Kind]int{
		models.KindDate:     numFmtDate,
		models.KindTime:     numFmtTime,
		models.KindDatetime: numFmtDatetime,
	} {
		id, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
		if err != nil {
			f.Close()
			return nil, err
		}
		w.styles[kind] = id
	}
	return w, nil
}

// HasSheet reports whether the sheet has been created.
func (w *Writer) HasSheet(name string) bool {
	_, ok := w.sheets[name]
	return ok
}

// WithColumns declares the column names of a sheet for the by-name appends.
// With addToTop the names are written as the first row when the sheet is
// created, so it must be called before anything is appended to the sheet.
func (w *Writer) WithColumns(sheet string, columns []string, addToTop bool) error {
	if w.saved {
		return ErrWriterClosed
	}
	if addToTop && w.HasSheet(sheet) {
		return fmt.Errorf("sheet %q already has rows", sheet)
	}
	w.columns[sheet] = columnSpec{names: append([]string(nil), columns...), addToTop: addToTop}
	return nil
}

func columnIndex(columns []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}
	return index
}

func (w *Writer) sheet(name string) (*sheetWriter, error) {
	if w.saved {
		return nil, ErrWriterClosed
	}
	if sw, ok := w.sheets[name]; ok {
		return sw, nil
	}

	if len(w.sheets) == 0 {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), name); err != nil {
			return nil, err
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return nil, err
	}
	stream, err := w.file.NewStreamWriter(name)
	if err != nil {
		return nil, err
	}
	sw := &sheetWriter{stream: stream, next: 1}
	w.sheets[name] = sw
	w.order = append(w.order, name)

	if spec, ok := w.columns[name]; ok && spec.addToTop {
		header := make([]interface{}, len(spec.names))
		for i, n := range spec.names {
			header[i] = n
		}
		if err := sw.setRow(header); err != nil {
			return nil, err
		}
	}
	w.log.Debug("sheet created", zap.String("sheet", name))
	return sw, nil
}

func (sw *sheetWriter) setRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, sw.next)
	if err != nil {
		return err
	}
	if err := sw.stream.SetRow(cell, values); err != nil {
		return err
	}
	sw.next++
	return nil
}

// value maps a cell to what the stream writer stores. Blank and error cells
// give nil, which leaves the cell empty.
func (w *Writer) value(v models.CellValue) interface{} {
	switch v.Kind() {
	case models.KindBool:
		return v.BoolValue()
	case models.KindNumber:
		return v.Float()
	case models.KindDate, models.KindTime, models.KindDatetime:
		return excelize.Cell{StyleID: w.styles[v.Kind()], Value: v.Float()}
	case models.KindShared, models.KindString:
		return v.Text()
	}
	return nil
}

func (w *Writer) rowValues(prefix []models.CellValue, rowNum *models.RowNum, cells []models.CellValue) []interface{} {
	n := len(prefix) + len(cells)
	if rowNum != nil {
		n++
	}
	values := make([]interface{}, 0, n)
	for _, v := range prefix {
		values = append(values, w.value(v))
	}
	if rowNum != nil {
		values = append(values, int64(*rowNum))
	}
	for _, v := range cells {
		values = append(values, w.value(v))
	}
	return values
}

// AppendRow writes prefix cells, then the row number when rowNum is not nil,
// then the cells, as the next row of the sheet.
func (w *Writer) AppendRow(sheet string, rowNum *models.RowNum, cells, prefix []models.CellValue) error {
	sw, err := w.sheet(sheet)
	if err != nil {
		return err
	}
	return sw.setRow(w.rowValues(prefix, rowNum, cells))
}

// AppendRows writes rows like AppendRow. rowNums is either empty, which
// writes no row number column, or parallel to rows.
func (w *Writer) AppendRows(sheet string, rowNums []models.RowNum, rows [][]models.CellValue, prefix []models.CellValue) error {
	if len(rowNums) > 0 && len(rowNums) != len(rows) {
		return fmt.Errorf("%w: %d row numbers, %d rows", ErrLengthMismatch, len(rowNums), len(rows))
	}
	sw, err := w.sheet(sheet)
	if err != nil {
		return err
	}
	for i, cells := range rows {
		var rowNum *models.RowNum
		if len(rowNums) > 0 {
			rowNum = &rowNums[i]
		}
		if err := sw.setRow(w.rowValues(prefix, rowNum, cells)); err != nil {
			return err
		}
	}
	return nil
}

// AppendBatch writes a decoded batch with its row numbers.
func (w *Writer) AppendBatch(sheet string, batch *models.Batch, withRowNums bool, prefix []models.CellValue) error {
	if batch.Len() == 0 {
		return nil
	}
	var rowNums []models.RowNum
	if withRowNums {
		rowNums = batch.Rows
	}
	return w.AppendRows(sheet, rowNums, batch.Data, prefix)
}

func (w *Writer) byName(sheet string, row map[string]models.CellValue) ([]interface{}, error) {
	spec, ok := w.columns[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q", ErrColumnsNotSet, sheet)
	}
	index := columnIndex(spec.names)
	values := make([]interface{}, len(spec.names))
	for name, v := range row {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q in sheet %q", ErrUnknownColumn, name, sheet)
		}
		values[i] = w.value(v)
	}
	return values, nil
}

// AppendRowByName writes one row whose cells are keyed by column name.
func (w *Writer) AppendRowByName(sheet string, row map[string]models.CellValue) error {
	return w.AppendRowsByName(sheet, []map[string]models.CellValue{row})
}

// AppendRowsByName writes rows whose cells are keyed by column name. No row
// is written when any of them names an unknown column.
func (w *Writer) AppendRowsByName(sheet string, rows []map[string]models.CellValue) error {
	if w.saved {
		return ErrWriterClosed
	}
	all := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values, err := w.byName(sheet, row)
		if err != nil {
			return err
		}
		all = append(all, values)
	}
	sw, err := w.sheet(sheet)
	if err != nil {
		return err
	}
	for _, values := range all {
		if err := sw.setRow(values); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) finish() error {
	if w.saved {
		return ErrWriterClosed
	}
	w.saved = true
	for _, name := range w.order {
		if err := w.sheets[name].stream.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// SaveAs writes the workbook to path.
func (w *Writer) SaveAs(path string) error {
	defer w.Close()
	if err := w.finish(); err != nil {
		return err
	}
	w.log.Debug("saving workbook", zap.String("path", path), zap.Strings("sheets", w.order))
	return w.file.SaveAs(path)
}

// WriteTo writes the workbook to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	defer w.Close()
	if err := w.finish(); err != nil {
		return 0, err
	}
	return w.file.WriteTo(out)
}

// Close releases the workbook and the temporary files of its streams.
// Nothing can be written or saved afterwards. Close is safe to call after
// SaveAs and more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.saved = true
	return w.file.Close()
}
