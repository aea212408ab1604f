package xlsxbatch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/parser"
)

// Status is the position of a Sheet decoder within the worksheet part.
type Status uint8

const (
	// StatusClosed means sheetData is finished or the decoder was closed.
	StatusClosed Status = iota
	// StatusNew means sheetData has not started yet.
	StatusNew
	// StatusActive means the decoder is between cells inside sheetData.
	StatusActive
	// StatusReadingCell means the current cell is inside the column window.
	StatusReadingCell
	// StatusSkippingCell means the current cell is ignored.
	StatusSkippingCell
)

var statusNames = [...]string{"closed", "new", "active", "reading cell", "skipping cell"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}

// Sheet decodes one worksheet part row by row.
type Sheet struct {
	name   string
	part   string
	rc     io.ReadCloser
	dec    *xml.Decoder
	shared []string
	styles *parser.StyleTable
	opts   SheetOptions
	log    *zap.Logger

	status    Status
	started   bool
	dimension *models.MergedRange
	merged    []models.MergedRange
	mergeRead bool

	// current position
	row     models.RowNum
	lastRow models.RowNum

	headerPending bool
	header        *models.Row

	skipUntil   *RowMatcher
	skipMatched *RowMatcher
	readBefore  *RowMatcher
	headerCheck *RowMatcher

	captures     map[models.Address]string
	captured     map[string]models.CellValue
	captureSetup bool
}

func newSheet(name, part string, rc io.ReadCloser, shared []string, styles *parser.StyleTable, opts SheetOptions, log *zap.Logger) *Sheet {
	return &Sheet{
		name:          name,
		part:          part,
		rc:            rc,
		dec:           parser.NewDecoder(rc),
		shared:        shared,
		styles:        styles,
		opts:          opts,
		log:           log,
		status:        StatusNew,
		headerPending: opts.FirstRowIsHeader,
	}
}

// SheetName returns the name of the sheet.
func (s *Sheet) SheetName() string { return s.name }

// Status returns the decoder state.
func (s *Sheet) Status() Status { return s.status }

// ColumnRange returns the configured left and right columns.
func (s *Sheet) ColumnRange() (models.ColNum, models.ColNum) {
	return s.opts.LeftCol, s.opts.RightCol
}

// Options returns the normalized options the sheet was opened with.
func (s *Sheet) Options() SheetOptions { return s.opts }

// Dimension returns the used range declared by the sheet, once the decoder
// has passed the dimension element.
func (s *Sheet) Dimension() (models.MergedRange, bool) {
	if s.dimension == nil {
		return models.MergedRange{}, false
	}
	return *s.dimension, true
}

// Close releases the worksheet part.
func (s *Sheet) Close() error {
	s.status = StatusClosed
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	s.rc = nil
	return err
}

func (s *Sheet) configurable(setting string) error {
	if s.started {
		return fmt.Errorf("%w: %s must be set before reading rows", ErrConfiguration, setting)
	}
	return nil
}

func (s *Sheet) windowMatcher(setting string, conds map[string]string, mode MatchMode) (*RowMatcher, error) {
	if err := s.configurable(setting); err != nil {
		return nil, err
	}
	m, err := NewRowMatcher(conds, mode)
	if err != nil {
		return nil, err
	}
	for _, col := range m.Columns() {
		if col < s.opts.LeftCol || col > s.opts.RightCol {
			return nil, fmt.Errorf("%w: %s column %d outside columns %d to %d", ErrConfiguration, setting, col, s.opts.LeftCol, s.opts.RightCol)
		}
	}
	return m, nil
}

// WithSkipUntil drops every row before the first one matching all
// conditions. The matching row itself is kept.
func (s *Sheet) WithSkipUntil(conds map[string]string) error {
	m, err := s.windowMatcher("skip until", conds, MatchAll)
	if err != nil {
		return err
	}
	s.skipUntil = m
	return nil
}

// WithSkipMatched drops data rows matching the conditions. The header row is
// never dropped.
func (s *Sheet) WithSkipMatched(conds map[string]string, mode MatchMode) error {
	m, err := s.windowMatcher("skip matched", conds, mode)
	if err != nil {
		return err
	}
	s.skipMatched = m
	return nil
}

// WithReadBefore ends the sheet at the first row matching all conditions.
// That row is not returned.
func (s *Sheet) WithReadBefore(conds map[string]string) error {
	m, err := s.windowMatcher("read before", conds, MatchAll)
	if err != nil {
		return err
	}
	s.readBefore = m
	return nil
}

// WithHeaderCheck validates the header row against the conditions.
func (s *Sheet) WithHeaderCheck(conds map[string]string) error {
	if !s.opts.FirstRowIsHeader {
		return fmt.Errorf("%w: header check without a header row", ErrConfiguration)
	}
	m, err := s.windowMatcher("header check", conds, MatchAll)
	if err != nil {
		return err
	}
	s.headerCheck = m
	return nil
}

// WithCaptureValues snapshots cells read before the first data row. The
// map goes from an A1 address to the key reported by CapturedValues.
func (s *Sheet) WithCaptureValues(addrs map[string]string) error {
	if err := s.configurable("capture values"); err != nil {
		return err
	}
	captures := make(map[models.Address]string, len(addrs))
	for addr, key := range addrs {
		row, col, err := cellref.ParseAddress(addr)
		if err != nil {
			return err
		}
		if row <= s.opts.SkipRows || col < s.opts.LeftCol || col > s.opts.RightCol {
			return fmt.Errorf("%w: capture address %s outside the rows and columns read", ErrConfiguration, addr)
		}
		captures[models.Address{Row: row, Col: col}] = key
	}
	s.captures = captures
	s.captured = make(map[string]models.CellValue, len(captures))
	s.captureSetup = len(captures) > 0
	return nil
}

// CapturedValues returns the values collected by WithCaptureValues. It is
// available once the header row has been taken.
func (s *Sheet) CapturedValues() (map[string]models.CellValue, error) {
	switch {
	case !s.opts.FirstRowIsHeader:
		return nil, fmt.Errorf("%w: captured values need a header row", ErrConfiguration)
	case !s.captureSetup:
		return nil, fmt.Errorf("%w: no capture addresses configured", ErrConfiguration)
	case s.headerPending || s.header == nil:
		return nil, fmt.Errorf("%w: header row not read yet", ErrConfiguration)
	}
	return maps.Clone(s.captured), nil
}

// HeaderRow returns the header row, reading it first when it is pending.
func (s *Sheet) HeaderRow() (*models.Row, error) {
	if s.headerPending {
		if err := s.takeHeader(); err != nil {
			return nil, err
		}
	}
	if s.header == nil {
		return nil, fmt.Errorf("%w: sheet %q has no header row", ErrConfiguration, s.name)
	}
	var out models.Row
	if err := deepcopy.Copy(&out, s.header); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Sheet) takeHeader() error {
	s.headerPending = false
	row, err := s.readRow(true)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.headerCheck != nil && !s.headerCheck.Match(row.Cells, s.opts.LeftCol) {
		return s.fail(fmt.Errorf("%w: %s", ErrHeaderMismatch, s.headerCheck.Mismatch(row.Cells, s.opts.LeftCol)))
	}
	s.captures = nil
	s.header = new(models.Row)
	return deepcopy.Copy(s.header, row)
}

// NextRow returns the next data row, or io.EOF once the sheet is exhausted.
// A pending header row is taken first.
func (s *Sheet) NextRow() (*models.Row, error) {
	if s.headerPending {
		if err := s.takeHeader(); err != nil {
			return nil, err
		}
	}
	row, err := s.readRow(false)
	if err != nil {
		return nil, err
	}
	s.captures = nil
	return row, nil
}

// RemainingRows drains the sheet into one batch. It returns nil when no
// rows are left.
func (s *Sheet) RemainingRows() (*models.Batch, error) {
	var batch *models.Batch
	for {
		row, err := s.NextRow()
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		if batch == nil {
			batch = models.NewBatch(s.opts.BatchSize)
		}
		batch.Append(*row)
	}
}

// readRow applies the row predicates to decoded rows: skip-until, then
// read-before, then skip-matched.
func (s *Sheet) readRow(header bool) (*models.Row, error) {
	for {
		row, err := s.decodeRow()
		if err != nil {
			return nil, err
		}
		if s.skipUntil != nil {
			if !s.skipUntil.Match(row.Cells, s.opts.LeftCol) {
				continue
			}
			s.skipUntil = nil
		}
		if s.readBefore.Match(row.Cells, s.opts.LeftCol) {
			s.log.Debug("read-before row reached", zap.String("sheet", s.name), zap.Uint32("row", uint32(row.Num)))
			s.status = StatusClosed
			return nil, io.EOF
		}
		if !header && s.skipMatched.Match(row.Cells, s.opts.LeftCol) {
			continue
		}
		return row, nil
	}
}

func (s *Sheet) fail(err error) error {
	s.status = StatusClosed
	return NewDecodeError(s.name, s.part, s.row, err)
}

// cellState carries the cell being decoded.
type cellState struct {
	col  models.ColNum
	typ  string
	kind parser.FormatKind
	text strings.Builder
	inV  bool
}

// decodeRow advances the state machine to the end of the next row that has
// at least one decoded cell.
func (s *Sheet) decodeRow() (*models.Row, error) {
	if s.status == StatusClosed || s.rc == nil {
		return nil, io.EOF
	}
	s.started = true

	var (
		cells   []models.CellValue
		lastCol models.ColNum
		cell    cellState
	)
	for {
		token, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			s.status = StatusClosed
			return nil, io.EOF
		}
		if err != nil {
			return nil, s.fail(parser.XMLError(err))
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch s.status {
			case StatusNew:
				switch t.Name.Local {
				case "dimension":
					s.readDimension(t)
				case "mergeCells":
					if err := s.readMergeCells(t); err != nil {
						return nil, s.fail(err)
					}
				case "sheetData":
					s.status = StatusActive
				}
			case StatusActive:
				switch t.Name.Local {
				case "row":
					if err := s.startRow(t); err != nil {
						return nil, s.fail(err)
					}
					cells = make([]models.CellValue, 0, s.rowCapacity(t))
					lastCol = 0
				case "c":
					if err := s.startCell(t, lastCol, &cell); err != nil {
						return nil, s.fail(err)
					}
					lastCol = cell.col
				}
			case StatusReadingCell:
				switch t.Name.Local {
				case "v":
					cell.inV = true
					cell.text.Reset()
				case "is":
					text, err := parser.ReadStringItem(s.dec)
					if err != nil {
						return nil, s.fail(err)
					}
					if cells, err = s.appendCell(cells, &cell, text); err != nil {
						return nil, s.fail(err)
					}
				}
			}

		case xml.CharData:
			if cell.inV {
				cell.text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "v":
				if s.status == StatusReadingCell && cell.inV {
					cell.inV = false
					if cells, err = s.appendCell(cells, &cell, cell.text.String()); err != nil {
						return nil, s.fail(err)
					}
				}
			case "c":
				if s.status == StatusReadingCell || s.status == StatusSkippingCell {
					s.status = StatusActive
				}
			case "row":
				if s.status == StatusActive && len(cells) > 0 {
					if w := s.opts.Width(); w > 0 {
						for len(cells) < w {
							cells = append(cells, models.Blank())
						}
					}
					return &models.Row{Num: s.row, Cells: cells}, nil
				}
			case "sheetData":
				s.status = StatusClosed
				return nil, io.EOF
			}
		}
	}
}

func (s *Sheet) readDimension(se xml.StartElement) {
	for _, a := range se.Attr {
		if a.Name.Local != "ref" {
			continue
		}
		dim, err := cellref.ParseRangeLoose(a.Value)
		if err != nil {
			s.log.Debug("ignoring dimension", zap.String("sheet", s.name), zap.String("ref", a.Value))
			return
		}
		s.dimension = &dim
	}
}

func (s *Sheet) startRow(se xml.StartElement) error {
	s.row = s.lastRow + 1
	for _, a := range se.Attr {
		if a.Name.Local != "r" {
			continue
		}
		n, err := strconv.ParseUint(a.Value, 10, 32)
		if err != nil || n == 0 {
			return fmt.Errorf("%w: row number %q", ErrMalformedXML, a.Value)
		}
		s.row = models.RowNum(n)
	}
	s.lastRow = s.row
	return nil
}

// rowCapacity sizes the cell slice from RightCol when fixed, else from the
// row's spans hint.
func (s *Sheet) rowCapacity(se xml.StartElement) int {
	if w := s.opts.Width(); w > 0 {
		return min(w, int(models.MaxColumns))
	}
	for _, a := range se.Attr {
		if a.Name.Local != "spans" {
			continue
		}
		_, last, _ := strings.Cut(a.Value, ":")
		n, err := strconv.Atoi(last)
		if err != nil {
			return 0
		}
		return max(0, min(n, int(models.MaxColumns))-int(s.opts.LeftCol)+1)
	}
	return 0
}

func (s *Sheet) startCell(se xml.StartElement, lastCol models.ColNum, cell *cellState) error {
	cell.typ = "n"
	cell.kind = parser.FormatDefault
	cell.col = lastCol + 1
	cell.inV = false
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "t":
			cell.typ = a.Value
		case "s":
			idx, err := strconv.Atoi(a.Value)
			if err != nil {
				return fmt.Errorf("%w: style index %q", ErrMalformedXML, a.Value)
			}
			kind, ok := s.styles.Kind(idx)
			if !ok && !(idx == 0 && s.styles.Len() == 0) {
				return fmt.Errorf("%w: unknown style index %d", ErrMalformedXML, idx)
			}
			cell.kind = kind
		case "r":
			col, err := cellref.ColumnToNumber(a.Value)
			if err != nil {
				return err
			}
			cell.col = col
		}
	}

	if s.row > s.opts.SkipRows && cell.col >= s.opts.LeftCol && cell.col <= s.opts.RightCol {
		s.status = StatusReadingCell
	} else {
		s.status = StatusSkippingCell
	}
	return nil
}

// appendCell converts the raw text of the current cell and stores it at its
// column, filling gaps with Blank.
func (s *Sheet) appendCell(cells []models.CellValue, cell *cellState, raw string) ([]models.CellValue, error) {
	if raw == "" {
		return cells, nil
	}
	value, err := s.cellValue(cell, raw)
	if err != nil {
		return cells, err
	}

	idx := int(cell.col - s.opts.LeftCol)
	if idx < len(cells) {
		return cells, fmt.Errorf("%w: cell in column %d out of order", ErrMalformedXML, cell.col)
	}
	for len(cells) < idx {
		cells = append(cells, models.Blank())
	}
	cells = append(cells, value)

	if key, ok := s.captures[models.Address{Row: s.row, Col: cell.col}]; ok {
		s.captured[key] = value
		delete(s.captures, models.Address{Row: s.row, Col: cell.col})
	}
	return cells, nil
}

func (s *Sheet) cellValue(cell *cellState, raw string) (models.CellValue, error) {
	switch cell.typ {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || idx < 0 || idx >= len(s.shared) {
			return models.Blank(), fmt.Errorf("%w: shared string index %q of %d", ErrMalformedXML, raw, len(s.shared))
		}
		return models.Shared(s.shared[idx]), nil
	case "n":
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return models.Blank(), fmt.Errorf("%w: number %q", ErrMalformedXML, raw)
		}
		switch cell.kind {
		case parser.FormatDate:
			return models.Date(f), nil
		case parser.FormatTime:
			return models.Time(f), nil
		case parser.FormatDatetime:
			return models.Datetime(f), nil
		}
		return models.Number(f), nil
	case "b":
		return models.Bool(strings.TrimSpace(raw) == "1"), nil
	case "d":
		return models.String(raw), nil
	case "e":
		return models.Error(raw), nil
	case "str":
		return models.String(parser.UnescapeText(raw)), nil
	case "inlineStr":
		return models.String(raw), nil
	}
	return models.Blank(), nil
}

// readMergeCells collects the mergeCell children of a mergeCells element
// whose start tag was just consumed.
func (s *Sheet) readMergeCells(se xml.StartElement) error {
	declared := -1
	for _, a := range se.Attr {
		if a.Name.Local == "count" {
			n, err := strconv.Atoi(a.Value)
			if err != nil {
				return fmt.Errorf("%w: merge count %q", ErrMalformedXML, a.Value)
			}
			declared = n
		}
	}

	var merged []models.MergedRange
	for {
		token, err := s.dec.Token()
		if err != nil {
			return parser.XMLError(err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local != "mergeCell" {
				continue
			}
			ref := ""
			for _, a := range t.Attr {
				if a.Name.Local == "ref" {
					ref = a.Value
				}
			}
			if ref == "" {
				return fmt.Errorf("%w: ref on mergeCell", ErrMissingAttribute)
			}
			m, err := cellref.ParseRange(ref)
			if err != nil {
				return err
			}
			merged = append(merged, m)
		case xml.EndElement:
			if t.Name.Local != "mergeCells" {
				continue
			}
			s.mergeRead = true
			if declared >= 0 && declared != len(merged) {
				s.merged = nil
				return fmt.Errorf("%w: declared %d, found %d", ErrMergeCountMismatch, declared, len(merged))
			}
			s.merged = merged
			return nil
		}
	}
}

// MergedRanges returns the merged blocks of the sheet. mergeCells follows
// sheetData in a worksheet, so the ranges are available once every row has
// been read; the remainder of the part is then scanned.
func (s *Sheet) MergedRanges() ([]models.MergedRange, error) {
	if s.mergeRead {
		return append([]models.MergedRange(nil), s.merged...), nil
	}
	if s.status != StatusClosed {
		return nil, fmt.Errorf("%w: merged ranges of %q are available after the last row", ErrConfiguration, s.name)
	}
	if s.rc == nil {
		return nil, fmt.Errorf("%w: sheet %q is closed", ErrConfiguration, s.name)
	}

	for {
		token, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			s.mergeRead = true
			return nil, nil
		}
		if err != nil {
			return nil, NewDecodeError(s.name, s.part, 0, parser.XMLError(err))
		}
		if se, ok := token.(xml.StartElement); ok && se.Name.Local == "mergeCells" {
			if err := s.readMergeCells(se); err != nil {
				return nil, NewDecodeError(s.name, s.part, 0, err)
			}
			return append([]models.MergedRange(nil), s.merged...), nil
		}
	}
}
