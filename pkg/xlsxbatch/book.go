package xlsxbatch

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/parser"
)

// Book is an opened workbook. Sheets opened from it share its shared string
// and style tables; the Book must stay open while they are read.
type Book struct {
	name   string
	file   *os.File
	zr     *zip.Reader
	wb     *parser.Workbook
	styles *parser.StyleTable
	shared []string
	loaded bool
	log    *zap.Logger
}

// Open opens the workbook at path.
func Open(path string, opts OpenOptions) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	b, err := OpenReader(f, info.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	b.file = f
	b.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return b, nil
}

// OpenReader opens a workbook held by ra. The caller keeps ownership of ra.
func OpenReader(ra io.ReaderAt, size int64, opts OpenOptions) (*Book, error) {
	log := opts.logger()
	if err := parser.CheckEncrypted(ra); err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}

	wb, err := parser.LoadWorkbook(zr)
	if err != nil {
		return nil, err
	}
	log.Debug("workbook loaded", zap.Int("sheets", len(wb.Sheets)), zap.Int("defined_names", len(wb.DefinedNames)))

	b := &Book{
		zr:     zr,
		wb:     wb,
		styles: &parser.StyleTable{},
		log:    log,
	}
	if f := parser.FindPart(zr, parser.PartStyles); f != nil {
		rc, err := parser.OpenPart(zr, parser.PartStyles)
		if err != nil {
			return nil, err
		}
		b.styles, err = parser.ParseStyles(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", parser.PartStyles, err)
		}
		log.Debug("styles loaded", zap.Int("cell_formats", b.styles.Len()))
	}

	if opts.LoadSharedStrings {
		if err := b.LoadSharedStrings(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Name returns the file name without extension, or "" for OpenReader.
func (b *Book) Name() string {
	return b.name
}

// LoadSharedStrings reads the shared string table. Calling it again has no
// effect. A workbook without the part has an empty table.
func (b *Book) LoadSharedStrings() error {
	if b.loaded {
		return nil
	}
	if parser.FindPart(b.zr, parser.PartSharedStrings) != nil {
		rc, err := parser.OpenPart(b.zr, parser.PartSharedStrings)
		if err != nil {
			return err
		}
		defer rc.Close()
		shared, err := parser.ParseSharedStrings(rc)
		if err != nil {
			return fmt.Errorf("%s: %w", parser.PartSharedStrings, err)
		}
		b.shared = shared
	}
	b.loaded = true
	b.log.Debug("shared strings loaded", zap.Int("count", len(b.shared)))
	return nil
}

// SharedStrings returns the shared string table, loading it if needed.
func (b *Book) SharedStrings() ([]string, error) {
	if err := b.LoadSharedStrings(); err != nil {
		return nil, err
	}
	return b.shared, nil
}

// SheetNames returns all sheet names in workbook order.
func (b *Book) SheetNames() []string {
	names := make([]string, 0, len(b.wb.Sheets))
	for _, s := range b.wb.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// VisibleSheets returns the names of sheets that are not hidden.
func (b *Book) VisibleSheets() []string {
	var names []string
	for _, s := range b.wb.Sheets {
		if !s.Hidden() {
			names = append(names, s.Name)
		}
	}
	return names
}

// HiddenSheets returns the names of hidden and very hidden sheets.
func (b *Book) HiddenSheets() []string {
	var names []string
	for _, s := range b.wb.Sheets {
		if s.Hidden() {
			names = append(names, s.Name)
		}
	}
	return names
}

// PrintAreas returns the print ranges defined for the named sheet.
func (b *Book) PrintAreas(name string) ([]models.MergedRange, error) {
	if _, ok := b.wb.Sheet(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return b.wb.PrintAreas(name), nil
}

// OpenSheet starts streaming the named sheet.
func (b *Book) OpenSheet(name string, opts SheetOptions) (*Sheet, error) {
	info, ok := b.wb.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if err := b.LoadSharedStrings(); err != nil {
		return nil, err
	}
	rc, err := parser.OpenPart(b.zr, info.Path)
	if err != nil {
		return nil, err
	}

	b.log.Debug("sheet opened",
		zap.String("sheet", name),
		zap.String("part", info.Path),
		zap.Uint32("skip_rows", uint32(opts.SkipRows)),
		zap.Uint16("left", uint16(opts.LeftCol)),
		zap.Uint16("right", uint16(opts.RightCol)),
		zap.Bool("header", opts.FirstRowIsHeader),
	)
	return newSheet(name, info.Path, rc, b.shared, b.styles, opts, b.log), nil
}

// OpenCachedSheet reads the whole named sheet into memory.
func (b *Book) OpenCachedSheet(name string, opts SheetOptions) (*CachedSheet, error) {
	s, err := b.OpenSheet(name, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.ToCached()
}

// Close releases the underlying file when the Book was opened by path.
func (b *Book) Close() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}
