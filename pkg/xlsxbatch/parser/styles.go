package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/nfp"
)

// FormatKind classifies a number format by what it displays.
type FormatKind uint8

const (
	// FormatDefault is any format that does not display a date or a time.
	FormatDefault FormatKind = iota
	// FormatDate displays a calendar date only.
	FormatDate
	// FormatTime displays a time of day only.
	FormatTime
	// FormatDatetime displays both a date and a time.
	FormatDatetime
)

func (k FormatKind) String() string {
	switch k {
	case FormatDate:
		return "date"
	case FormatTime:
		return "time"
	case FormatDatetime:
		return "datetime"
	}
	return "default"
}

// builtinKinds covers the predefined format ids that display dates or times,
// including the CJK locale ids.
var builtinKinds = func() map[int]FormatKind {
	m := make(map[int]FormatKind)
	span := func(from, to int, k FormatKind) {
		for id := from; id <= to; id++ {
			m[id] = k
		}
	}
	span(14, 17, FormatDate)
	span(27, 31, FormatDate)
	span(34, 36, FormatDate)
	span(50, 58, FormatDate)
	span(18, 21, FormatTime)
	span(32, 33, FormatTime)
	span(45, 47, FormatTime)
	m[22] = FormatDatetime
	return m
}()

// BuiltinFormatKind returns the kind of a predefined number format id.
func BuiltinFormatKind(id int) FormatKind {
	return builtinKinds[id]
}

// ClassifyFormatCode inspects a custom number format code. Only the first
// section is considered, since it governs positive numbers and dates are
// always positive serials.
func ClassifyFormatCode(code string) FormatKind {
	p := nfp.NumberFormatParser()
	sections := p.Parse(code)
	if len(sections) == 0 {
		return classifyByMarkers(code)
	}

	var hasDate, hasTime bool
	items := sections[0].Items
	for i, token := range items {
		switch token.TType {
		case nfp.TokenTypeElapsedDateTimes:
			hasTime = true
		case nfp.TokenTypeDateTimes:
			value := strings.ToUpper(token.TValue)
			switch {
			case isAmPm(token.TValue):
				hasTime = true
			case strings.ContainsAny(value, "YDEGB"):
				hasDate = true
			case strings.ContainsAny(value, "HS"):
				hasTime = true
			case strings.Contains(value, "M"):
				if isMonthToken(items, i) {
					hasDate = true
				} else {
					hasTime = true
				}
			}
		}
	}
	return kindOf(hasDate, hasTime)
}

func kindOf(hasDate, hasTime bool) FormatKind {
	switch {
	case hasDate && hasTime:
		return FormatDatetime
	case hasDate:
		return FormatDate
	case hasTime:
		return FormatTime
	}
	return FormatDefault
}

func isAmPm(value string) bool {
	for _, ap := range nfp.AmPm {
		if strings.EqualFold(ap, value) {
			return true
		}
	}
	return false
}

// isMonthToken reports whether the "m" token at i means months. It means
// minutes right after an hour or second token, or right before a second
// token.
func isMonthToken(items []nfp.Token, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if items[j].TType == nfp.TokenTypeElapsedDateTimes {
			return false
		}
		if items[j].TType == nfp.TokenTypeDateTimes {
			if strings.ContainsAny(strings.ToUpper(items[j].TValue), "HS") {
				return false
			}
			break
		}
	}
	for j := i + 1; j < len(items); j++ {
		if items[j].TType == nfp.TokenTypeDateTimes {
			return !strings.Contains(strings.ToUpper(items[j].TValue), "S")
		}
	}
	return true
}

// classifyByMarkers is the fallback for codes the tokenizer rejects.
func classifyByMarkers(code string) FormatKind {
	lower := strings.ToLower(code)
	if strings.Contains(lower, "yy") {
		return kindOf(true, strings.Contains(lower, "h") || strings.Contains(lower, "ss"))
	}
	if strings.Contains(lower, "ss") || strings.Contains(lower, "h:mm") {
		return FormatTime
	}
	return FormatDefault
}

// StyleTable maps a cell's style index (its s attribute, an index into
// cellXfs) to the kind of its number format.
type StyleTable struct {
	kinds []FormatKind
}

// Len returns the number of cell formats.
func (s *StyleTable) Len() int {
	if s == nil {
		return 0
	}
	return len(s.kinds)
}

// Kind returns the format kind of a style index. ok is false when the index
// does not exist.
func (s *StyleTable) Kind(index int) (FormatKind, bool) {
	if s == nil || index < 0 || index >= len(s.kinds) {
		return FormatDefault, false
	}
	return s.kinds[index], true
}

// ParseStyles reads numFmts and cellXfs from a styles part.
func ParseStyles(r io.Reader) (*StyleTable, error) {
	decoder := NewDecoder(r)
	custom := make(map[int]FormatKind)
	var xfIDs []int
	var inNumFmts, inCellXfs bool

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, XMLError(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "numFmts":
				inNumFmts = true
			case "cellXfs":
				inCellXfs = true
			case "numFmt":
				if !inNumFmts {
					continue
				}
				id, err := intAttr(t, "numFmtId")
				if err != nil {
					return nil, err
				}
				code, err := requireAttr(t, "formatCode")
				if err != nil {
					return nil, err
				}
				custom[id] = ClassifyFormatCode(code)
			case "xf":
				if !inCellXfs {
					continue
				}
				id := 0
				if _, ok := attrValue(t, "numFmtId"); ok {
					if id, err = intAttr(t, "numFmtId"); err != nil {
						return nil, err
					}
				}
				xfIDs = append(xfIDs, id)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "numFmts":
				inNumFmts = false
			case "cellXfs":
				inCellXfs = false
			}
		}
	}

	table := &StyleTable{kinds: make([]FormatKind, len(xfIDs))}
	for i, id := range xfIDs {
		if k, ok := custom[id]; ok {
			table.kinds[i] = k
		} else {
			table.kinds[i] = BuiltinFormatKind(id)
		}
	}
	return table, nil
}

func intAttr(se xml.StartElement, local string) (int, error) {
	v, err := requireAttr(se, local)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q on <%s>", ErrMalformedXML, local, v, se.Name.Local)
	}
	return n, nil
}
