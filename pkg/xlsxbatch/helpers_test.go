package xlsxbatch

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

const testRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>
</Relationships>`

const testWorkbook = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets>
<sheet name="Data" sheetId="1" r:id="rId1"/>
<sheet name="Hidden" sheetId="2" state="hidden" r:id="rId2"/>
</sheets>
<definedNames>
<definedName name="_xlnm.Print_Area" localSheetId="0">Data!$A$1:$C$6</definedName>
</definedNames>
</workbook>`

const testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<numFmts count="1"><numFmt numFmtId="164" formatCode="hh:mm"/></numFmts>
<cellXfs count="3">
<xf numFmtId="0"/>
<xf numFmtId="14" applyNumberFormat="1"/>
<xf numFmtId="164" applyNumberFormat="1"/>
</cellXfs>
</styleSheet>`

const testSharedStrings = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="7" uniqueCount="7">
<si><t>id</t></si>
<si><t>name</t></si>
<si><t>amount</t></si>
<si><t>alice</t></si>
<si><t>bob</t></si>
<si><t>Total</t></si>
<si><t>Report</t></si>
</sst>`

// testSheet has a header in row 1, no row 3 and one merged block.
//
//	   A        B         C
//	1  id       name      amount
//	2  1        alice     2021-01-01 (numFmt 14)
//	4  2                  TRUE
//	5  "inline" #DIV/0!   0.5 (hh:mm)
//	6  Total              "x" (formula)
const testSheet = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<dimension ref="A1:C6"/>
<sheetData>
<row r="1" spans="1:3"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="s"><v>2</v></c></row>
<row r="2" spans="1:3"><c r="A2"><v>1</v></c><c r="B2" t="s"><v>3</v></c><c r="C2" s="1"><v>44197</v></c></row>
<row r="4" spans="1:3"><c r="A4"><v>2</v></c><c r="C4" t="b"><v>1</v></c></row>
<row r="5" spans="1:3"><c r="A5" t="inlineStr"><is><t>in</t><r><t>line</t></r></is></c><c r="B5" t="e"><v>#DIV/0!</v></c><c r="C5" s="2"><v>0.5</v></c></row>
<row r="6" spans="1:3"><c r="A6" t="s"><v>5</v></c><c r="C6" t="str"><f>CONCAT("x")</f><v>x</v></c></row>
</sheetData>
<mergeCells count="1"><mergeCell ref="A6:B6"/></mergeCells>
</worksheet>`

const testHiddenSheet = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<sheetData><row r="1"><c r="A1" t="s"><v>6</v></c></row></sheetData>
</worksheet>`

func testParts() map[string]string {
	return map[string]string{
		"[Content_Types].xml":        `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"xl/_rels/workbook.xml.rels": testRels,
		"xl/workbook.xml":            testWorkbook,
		"xl/styles.xml":              testStyles,
		"xl/sharedStrings.xml":       testSharedStrings,
		"xl/worksheets/sheet1.xml":   testSheet,
		"xl/worksheets/sheet2.xml":   testHiddenSheet,
	}
}

// withSheet returns the test package with sheet1 replaced by content.
func withSheet(content string) map[string]string {
	parts := testParts()
	parts["xl/worksheets/sheet1.xml"] = content
	return parts
}

// replaced returns the test package with one substitution in sheet1.
func replaced(old, repl string) map[string]string {
	return withSheet(strings.Replace(testSheet, old, repl, 1))
}

func zipBytes(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(parts)) {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func openTestBook(t *testing.T, parts map[string]string) *Book {
	t.Helper()
	data := zipBytes(t, parts)
	b, err := OpenReader(bytes.NewReader(data), int64(len(data)), DefaultOpenOptions())
	require.NoError(t, err)
	return b
}

func openTestSheet(t *testing.T, parts map[string]string, opts SheetOptions) *Sheet {
	t.Helper()
	s, err := openTestBook(t, parts).OpenSheet("Data", opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// drain reads every remaining row of s.
func drain(t *testing.T, s *Sheet) []models.Row {
	t.Helper()
	var rows []models.Row
	for {
		row, err := s.NextRow()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, *row)
	}
}

func rowNums(rows []models.Row) []models.RowNum {
	nums := make([]models.RowNum, len(rows))
	for i, r := range rows {
		nums[i] = r.Num
	}
	return nums
}
