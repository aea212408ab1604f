// Package parser reads the workbook-level parts of an Office Open XML
// spreadsheet package: relationships, sheet list, styles and shared strings.
package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html/charset"
)

var (
	// ErrMalformedContainer indicates a package or part that is missing or
	// unreadable.
	ErrMalformedContainer = errors.New("malformed container")
	// ErrMalformedXML indicates a tokenizer error or unexpected structure.
	ErrMalformedXML = errors.New("malformed xml")
	// ErrMissingAttribute indicates a required XML attribute is absent.
	ErrMissingAttribute = errors.New("missing attribute")
	// ErrUnknownRelationship indicates a sheet whose relationship id does
	// not resolve.
	ErrUnknownRelationship = errors.New("unknown relationship")
	// ErrSharedStringCountMismatch indicates a shared string table whose
	// length differs from its declared count.
	ErrSharedStringCountMismatch = errors.New("shared string count mismatch")
)

// Well-known part names.
const (
	PartWorkbook      = "xl/workbook.xml"
	PartWorkbookRels  = "xl/_rels/workbook.xml.rels"
	PartStyles        = "xl/styles.xml"
	PartSharedStrings = "xl/sharedStrings.xml"
)

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// NewDecoder returns an XML decoder over r that understands the same
// non-UTF-8 encodings excelize does.
func NewDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return d
}

// FindPart returns the zip entry named name, or nil. A leading "/" is
// ignored and a case-insensitive match is accepted when no exact one exists.
func FindPart(r *zip.Reader, name string) *zip.File {
	name = strings.TrimPrefix(name, "/")
	var folded *zip.File
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
		if folded == nil && strings.EqualFold(f.Name, name) {
			folded = f
		}
	}
	return folded
}

// OpenPart opens the named entry for streaming.
func OpenPart(r *zip.Reader, name string) (io.ReadCloser, error) {
	f := FindPart(r, name)
	if f == nil {
		return nil, fmt.Errorf("%w: part %s not found", ErrMalformedContainer, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedContainer, name, err)
	}
	return rc, nil
}

// readZipFile returns the content of the named entry, or nil when the entry
// does not exist.
func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	f := FindPart(r, name)
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedContainer, name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedContainer, name, err)
	}
	return data, nil
}

// ResolvePartPath resolves a relationship target against the directory of
// the part that owns the relationship. Targets starting with "/" are
// package-absolute.
func ResolvePartPath(target, baseDir string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// CheckEncrypted inspects the leading bytes of a package. Password-protected
// workbooks are stored as OLE compound files holding EncryptionInfo and
// EncryptedPackage streams instead of a zip archive; those are reported as
// ErrMalformedContainer with a precise message. A nil error means the data
// is not an OLE file.
func CheckEncrypted(ra io.ReaderAt) error {
	head := make([]byte, len(oleSignature))
	if _, err := ra.ReadAt(head, 0); err != nil || !bytes.Equal(head, oleSignature) {
		return nil
	}
	doc, err := mscfb.New(ra)
	if err != nil {
		return fmt.Errorf("%w: compound file: %v", ErrMalformedContainer, err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptionInfo", "EncryptedPackage":
			return fmt.Errorf("%w: workbook is encrypted", ErrMalformedContainer)
		}
	}
	return fmt.Errorf("%w: compound file is not a spreadsheet package", ErrMalformedContainer)
}

// attrValue returns the value of the attribute with the given local name.
func attrValue(se xml.StartElement, local string) (string, bool) {
	for _, attr := range se.Attr {
		if attr.Name.Local == local {
			return attr.Value, true
		}
	}
	return "", false
}

// requireAttr is attrValue that fails with ErrMissingAttribute.
func requireAttr(se xml.StartElement, local string) (string, error) {
	v, ok := attrValue(se, local)
	if !ok {
		return "", fmt.Errorf("%w: %s on <%s>", ErrMissingAttribute, local, se.Name.Local)
	}
	return v, nil
}

// readElementText collects the character data of the element whose start
// tag was just consumed, including nested elements, up to its end tag.
func readElementText(decoder *xml.Decoder) (string, error) {
	var text strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return text.String(), XMLError(err)
		}
		switch t := token.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return text.String(), nil
}

// XMLError wraps a tokenizer failure as ErrMalformedXML. A premature io.EOF
// inside an element is malformed too.
func XMLError(err error) error {
	if errors.Is(err, ErrMalformedXML) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedXML, err)
}
