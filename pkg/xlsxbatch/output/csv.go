package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/convert"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// CSVWriter writes decoded rows as CSV records. Cells are rendered with the
// string coercion of the convert package, blanks as empty fields.
type CSVWriter struct {
	w         *csv.Writer
	conv      *convert.Converter
	withRowNo bool
}

// NewCSVWriter returns a writer on out. With withRowNo every record starts
// with the worksheet row number.
func NewCSVWriter(out io.Writer, withRowNo bool) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(out), conv: convert.Default, withRowNo: withRowNo}
}

// Comma sets the field delimiter.
func (c *CSVWriter) Comma(r rune) {
	c.w.Comma = r
}

func (c *CSVWriter) record(label string, cells []models.CellValue) ([]string, error) {
	rec := make([]string, 0, len(cells)+1)
	if c.withRowNo {
		rec = append(rec, label)
	}
	for _, v := range cells {
		s, _, err := c.conv.String(v)
		if err != nil {
			return nil, err
		}
		rec = append(rec, s)
	}
	return rec, nil
}

// WriteHeader writes a header row. Its row number field is left empty.
func (c *CSVWriter) WriteHeader(header models.Row) error {
	rec, err := c.record("", header.Cells)
	if err != nil {
		return err
	}
	return c.w.Write(rec)
}

// WriteBatch writes every row of the batch.
func (c *CSVWriter) WriteBatch(batch *models.Batch) error {
	for i := 0; i < batch.Len(); i++ {
		row := batch.Row(i)
		rec, err := c.record(strconv.FormatUint(uint64(row.Num), 10), row.Cells)
		if err != nil {
			return err
		}
		if err := c.w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered records and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
