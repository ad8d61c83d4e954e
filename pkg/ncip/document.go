package ncip

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Document is a parsed NCIP message. It wraps an ordered element tree and is
// mutated in place by the translation rules; it is not safe for concurrent
// use and is never shared between requests.
type Document struct {
	tree *etree.Document
}

// Parse reads an NCIP document from raw bytes. A document that cannot be
// parsed is a fatal error for the request that carried it.
func Parse(data []byte) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing NCIP document: %w", err)
	}
	if tree.Root() == nil {
		return nil, fmt.Errorf("parsing NCIP document: no root element")
	}
	return &Document{tree: tree}, nil
}

// RequestType returns the element name of the first child of NCIPMessage,
// which identifies the message type. It returns "" when the document has no
// such child.
func (d *Document) RequestType() string {
	el := d.tree.FindElement("/NCIPMessage/*")
	if el == nil {
		return ""
	}
	return el.Tag
}

// FindElement returns the first element matching an etree path, or nil.
func (d *Document) FindElement(path string) *etree.Element {
	return d.tree.FindElement(path)
}

// FindElements returns all elements matching an etree path.
func (d *Document) FindElements(path string) []*etree.Element {
	return d.tree.FindElements(path)
}

// Text returns the text content of the first element matching path, or ""
// when no element matches.
func (d *Document) Text(path string) string {
	if el := d.tree.FindElement(path); el != nil {
		return el.Text()
	}
	return ""
}

// ElementsWithText returns every leaf element whose text content equals
// text exactly. Elements with child elements are never matched; the agency
// code substitution rules only ever rewrite leaves.
func (d *Document) ElementsWithText(text string) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		children := e.ChildElements()
		if len(children) == 0 {
			if e.Text() == text {
				out = append(out, e)
			}
			return
		}
		for _, c := range children {
			walk(c)
		}
	}
	if root := d.tree.Root(); root != nil {
		walk(root)
	}
	return out
}

// ElementsMatching returns every element with the given tag whose text
// content contains substr.
func (d *Document) ElementsMatching(tag, substr string) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == tag && strings.Contains(e.Text(), substr) {
			out = append(out, e)
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	if root := d.tree.Root(); root != nil {
		walk(root)
	}
	return out
}

// Bytes serializes the document with a UTF-8 XML declaration, replacing any
// declaration present on the source bytes. Directives such as the NCIP
// DOCTYPE are preserved.
func (d *Document) Bytes() ([]byte, error) {
	raw, err := d.tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing NCIP document: %w", err)
	}
	if bytes.HasPrefix(raw, []byte("<?xml")) {
		if i := bytes.Index(raw, []byte("?>")); i >= 0 {
			raw = raw[i+2:]
		}
	}
	raw = bytes.TrimLeft(raw, "\r\n")
	return append([]byte(xml.Header), raw...), nil
}

// String returns the serialized document, or "" if serialization fails.
func (d *Document) String() string {
	data, err := d.Bytes()
	if err != nil {
		return ""
	}
	return string(data)
}
