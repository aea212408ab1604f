package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// Sheet visibility states as written in workbook.xml.
const (
	StateVisible    = "visible"
	StateHidden     = "hidden"
	StateVeryHidden = "veryHidden"
)

// SheetInfo describes one sheet entry of the workbook.
type SheetInfo struct {
	Name  string
	RelID string
	// Path is the worksheet part inside the package.
	Path  string
	State string
}

// Hidden reports whether the sheet is hidden or very hidden.
func (s SheetInfo) Hidden() bool {
	return s.State == StateHidden || s.State == StateVeryHidden
}

// DefinedName is one entry of the workbook's definedNames.
type DefinedName struct {
	Name     string
	RefersTo string
	// LocalSheetID is the 0-based sheet index the name is scoped to, or -1.
	LocalSheetID int
}

// Workbook is the parsed content of xl/workbook.xml.
type Workbook struct {
	Sheets       []SheetInfo
	DefinedNames []DefinedName
}

// Sheet returns the sheet with the given name.
func (w *Workbook) Sheet(name string) (SheetInfo, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return SheetInfo{}, false
}

// LoadWorkbook reads the relationship and workbook parts of a package.
// Both parts are required.
func LoadWorkbook(r *zip.Reader) (*Workbook, error) {
	relsData, err := readZipFile(r, PartWorkbookRels)
	if err != nil {
		return nil, err
	}
	if relsData == nil {
		return nil, fmt.Errorf("%w: %s not found", ErrMalformedContainer, PartWorkbookRels)
	}
	rels, err := ParseRelationships(bytes.NewReader(relsData))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PartWorkbookRels, err)
	}

	rc, err := OpenPart(r, PartWorkbook)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	wb, err := ParseWorkbook(rc, rels, path.Dir(PartWorkbook))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PartWorkbook, err)
	}
	return wb, nil
}

// ParseRelationships maps relationship Id to its raw Target.
func ParseRelationships(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	decoder := NewDecoder(r)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return nil, XMLError(err)
		}
		se, ok := token.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		id, err := requireAttr(se, "Id")
		if err != nil {
			return nil, err
		}
		target, err := requireAttr(se, "Target")
		if err != nil {
			return nil, err
		}
		result[id] = target
	}
}

// ParseWorkbook reads the sheet list and defined names. Sheet relationship
// ids are resolved through rels, relative to baseDir.
func ParseWorkbook(r io.Reader, rels map[string]string, baseDir string) (*Workbook, error) {
	wb := &Workbook{}
	decoder := NewDecoder(r)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return wb, nil
		}
		if err != nil {
			return nil, XMLError(err)
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "sheet":
			info, err := parseSheetEntry(se, rels, baseDir)
			if err != nil {
				return nil, err
			}
			wb.Sheets = append(wb.Sheets, info)
		case "definedName":
			dn := DefinedName{LocalSheetID: -1}
			if dn.Name, err = requireAttr(se, "name"); err != nil {
				return nil, err
			}
			if v, ok := attrValue(se, "localSheetId"); ok {
				if dn.LocalSheetID, err = strconv.Atoi(v); err != nil {
					return nil, fmt.Errorf("%w: localSheetId %q", ErrMalformedXML, v)
				}
			}
			if dn.RefersTo, err = readElementText(decoder); err != nil {
				return nil, err
			}
			wb.DefinedNames = append(wb.DefinedNames, dn)
		}
	}
}

func parseSheetEntry(se xml.StartElement, rels map[string]string, baseDir string) (SheetInfo, error) {
	var info SheetInfo
	var err error
	if info.Name, err = requireAttr(se, "name"); err != nil {
		return info, err
	}
	// r:id, matched on the local name like every other attribute.
	if info.RelID, err = requireAttr(se, "id"); err != nil {
		return info, err
	}
	info.State = StateVisible
	if v, ok := attrValue(se, "state"); ok && v != "" {
		info.State = v
	}
	target, ok := rels[info.RelID]
	if !ok {
		return info, fmt.Errorf("%w: %s for sheet %q", ErrUnknownRelationship, info.RelID, info.Name)
	}
	info.Path = ResolvePartPath(target, baseDir)
	return info, nil
}

// PrintAreas returns the print ranges defined for the named sheet.
func (w *Workbook) PrintAreas(sheet string) []models.MergedRange {
	index := -1
	for i, s := range w.Sheets {
		if s.Name == sheet {
			index = i
			break
		}
	}

	var areas []models.MergedRange
	for _, dn := range w.DefinedNames {
		if !strings.EqualFold(dn.Name, "_xlnm.Print_Area") {
			continue
		}
		name, ranges := parsePrintAreaReference(dn.RefersTo)
		if (dn.LocalSheetID >= 0 && dn.LocalSheetID == index) || (dn.LocalSheetID < 0 && name == sheet) {
			areas = append(areas, ranges...)
		}
	}
	return areas
}

// parsePrintAreaReference parses 'Sheet Name'!$A$1:$D$10,'Sheet Name'!$F$1:$G$2
// into the sheet name and its ranges. Unparsable ranges are skipped.
func parsePrintAreaReference(ref string) (string, []models.MergedRange) {
	var areas []models.MergedRange
	var sheetName string
	for _, part := range strings.Split(ref, ",") {
		part = strings.TrimSpace(part)
		idx := strings.LastIndex(part, "!")
		if idx < 0 {
			continue
		}
		if sheetName == "" {
			sheetName = strings.ReplaceAll(strings.Trim(part[:idx], "'"), "''", "'")
		}
		if m, err := cellref.ParseRangeLoose(part[idx+1:]); err == nil {
			areas = append(areas, m)
		}
	}
	return sheetName, areas
}
