package xlsxbatch

import (
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// Extract decodes every selected sheet of the workbook at path into its JSON
// view. A sheet that fails to decode is logged and left empty.
func Extract(path string, opts ExtractOptions) (*models.WorkbookData, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b, err := Open(path, OpenOptions{LoadSharedStrings: true, Logger: log})
	if err != nil {
		return nil, err
	}
	defer b.Close()

	names := b.VisibleSheets()
	hidden := b.HiddenSheets()
	if opts.ShouldIncludeHidden() {
		names = b.SheetNames()
		hidden = nil
	}

	sheets := make(map[string]models.SheetData, len(names))
	for _, name := range names {
		data, err := extractSheet(b, name, opts)
		if err != nil {
			// Log warning and continue with empty rows
			log.Warn("sheet extraction failed", zap.String("sheet", name), zap.Error(err))
			data = models.SheetData{}
		}

		if opts.ShouldIncludePrintAreas() {
			areas, err := b.PrintAreas(name)
			if err == nil {
				for _, area := range areas {
					if ref, err := cellref.FormatRange(area); err == nil {
						data.PrintAreas = append(data.PrintAreas, ref)
					}
				}
			}
		}
		sheets[name] = data
	}

	return &models.WorkbookData{
		BookName: filepath.Base(path),
		Sheets:   sheets,
		Hidden:   hidden,
	}, nil
}

func extractSheet(b *Book, name string, opts ExtractOptions) (models.SheetData, error) {
	s, err := b.OpenSheet(name, opts.Sheet)
	if err != nil {
		return models.SheetData{}, err
	}
	defer s.Close()

	if len(opts.Capture) > 0 && s.Options().FirstRowIsHeader {
		if err := s.WithCaptureValues(opts.Capture); err != nil {
			return models.SheetData{}, err
		}
	}
	return ReadSheetData(s, opts.Mode)
}

// ReadSheetData drains a configured sheet into its JSON view: the header,
// the remaining rows, any captured values and, unless mode is light, the
// merged ranges.
func ReadSheetData(s *Sheet, mode Mode) (models.SheetData, error) {
	var data models.SheetData
	left, _ := s.ColumnRange()

	if s.Options().FirstRowIsHeader {
		header, err := s.HeaderRow()
		if errors.Is(err, ErrHeaderMismatch) {
			return data, err
		}
		if err == nil {
			if row, ok := CellRowOf(*header, left); ok {
				data.Header = &row
			}
		}
	}

	for batch, err := range s.Batches() {
		if err != nil {
			return data, err
		}
		for i := 0; i < batch.Len(); i++ {
			if row, ok := CellRowOf(batch.Row(i), left); ok {
				data.Rows = append(data.Rows, row)
			}
		}
	}

	// No captures configured is not an error here.
	if values, err := s.CapturedValues(); err == nil && len(values) > 0 {
		data.Captured = make(map[string]interface{}, len(values))
		for k, v := range values {
			data.Captured[k] = JSONValue(v)
		}
	}

	if mode.IncludesMerged() {
		merged, err := s.MergedRanges()
		if err != nil {
			return data, err
		}
		for _, m := range merged {
			if ref, err := cellref.FormatRange(m); err == nil {
				data.MergedRanges = append(data.MergedRanges, ref)
			}
		}
	}
	return data, nil
}
