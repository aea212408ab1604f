package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxPrealloc bounds capacity taken from counts declared in a part.
const maxPrealloc = 1 << 16

// ParseSharedStrings reads the shared string table. Rich text runs are
// concatenated and phonetic runs (rPh) are dropped. The number of items must
// equal the declared uniqueCount, or count when uniqueCount is absent.
func ParseSharedStrings(r io.Reader) ([]string, error) {
	decoder := NewDecoder(r)
	declared := -1
	var items []string

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, XMLError(err)
		}
		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "sst":
			v, ok := attrValue(se, "uniqueCount")
			if !ok {
				v, ok = attrValue(se, "count")
			}
			if ok {
				if declared, err = strconv.Atoi(v); err != nil || declared < 0 {
					return nil, fmt.Errorf("%w: sst count %q", ErrMalformedXML, v)
				}
				items = make([]string, 0, min(declared, maxPrealloc))
			}
		case "si":
			text, err := ReadStringItem(decoder)
			if err != nil {
				return nil, err
			}
			items = append(items, text)
		}
	}

	if declared >= 0 && declared != len(items) {
		return nil, fmt.Errorf("%w: declared %d, found %d", ErrSharedStringCountMismatch, declared, len(items))
	}
	return items, nil
}

// ReadStringItem reads the text of an si or is element whose start tag
// was just consumed.
func ReadStringItem(decoder *xml.Decoder) (string, error) {
	var text strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return "", XMLError(err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPh":
				if err := decoder.Skip(); err != nil {
					return "", XMLError(err)
				}
			case "t":
				s, err := readElementText(decoder)
				if err != nil {
					return "", err
				}
				text.WriteString(s)
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	return UnescapeText(text.String()), nil
}

// UnescapeText decodes the _xHHHH_ escapes spreadsheet applications use for
// characters XML cannot carry, such as _x000D_ for a carriage return.
func UnescapeText(s string) string {
	if !strings.Contains(s, "_x") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "_x")
		if i < 0 || i+7 > len(s) || s[i+6] != '_' {
			if i < 0 {
				b.WriteString(s)
				return b.String()
			}
			b.WriteString(s[:i+2])
			s = s[i+2:]
			continue
		}
		code, err := strconv.ParseUint(s[i+2:i+6], 16, 16)
		if err != nil {
			b.WriteString(s[:i+2])
			s = s[i+2:]
			continue
		}
		b.WriteString(s[:i])
		b.WriteRune(rune(code))
		s = s[i+7:]
	}
}
