package c14n

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

var (
	errMultipleRoots = errors.New("more than one document element")
	errStrayText     = errors.New("character data outside the document element")
	errLateDoctype   = errors.New("DOCTYPE after the document element")
)

// entityDecl matches a general internal entity in a DOCTYPE internal subset.
// Parameter and external entities are not expanded.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([^\s%"']+)\s+(?:"([^"]*)"|'([^']*)')\s*>`)

// attrSpace is attribute-value normalization for literal whitespace.
var attrSpace = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// Parser reads XML text into an etree document.
type Parser struct {
	settings etree.ReadSettings
}

// NewParser creates a strict parser.
//
// Field values are already decoded text; a declared encoding in the XML
// declaration is therefore ignored instead of re-decoding the bytes.
func NewParser() *Parser {
	return &Parser{
		settings: etree.ReadSettings{
			CharsetReader: passthroughCharset,
		},
	}
}

func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

// Parse builds a document from text. Failures are returned as *Error with
// KindParse.
//
// The text is checked for well-formedness before the tree is built:
// elements must nest and close, there is exactly one document element, and
// only whitespace, comments and processing instructions may follow it.
// Entities declared in the internal subset are expanded. Literal tab, line
// feed and carriage return in attribute values become spaces.
func (p *Parser) Parse(text string) (*etree.Document, error) {
	entities, err := checkWellFormed(text)
	if err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}

	doc := etree.NewDocument()
	doc.ReadSettings = p.settings
	doc.ReadSettings.Entity = entities

	if err := doc.ReadFromString(text); err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}
	if doc.Root() == nil {
		return nil, &Error{Kind: KindParse, Err: ErrNoRoot}
	}
	normalizeAttrValues(doc.Root())
	return doc, nil
}

// checkWellFormed walks text with a strict decoder and returns the entities
// declared in its internal subset, if any.
func checkWellFormed(text string) (map[string]string, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = true
	d.CharsetReader = passthroughCharset

	var entities map[string]string
	depth, roots := 0, 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if roots > 0 {
					return nil, errMultipleRoots
				}
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && strings.Trim(string(t), " \t\r\n") != "" {
				return nil, errStrayText
			}
		case xml.Directive:
			if roots > 0 {
				return nil, errLateDoctype
			}
			entities = internalEntities(string(t))
			// Token consults Entity lazily, so references in the
			// document element resolve against the subset.
			d.Entity = entities
		}
	}
	if roots == 0 {
		return nil, ErrNoRoot
	}
	return entities, nil
}

func internalEntities(directive string) map[string]string {
	if !strings.HasPrefix(directive, "DOCTYPE") {
		return nil
	}
	matches := entityDecl.FindAllStringSubmatch(directive, -1)
	if len(matches) == 0 {
		return nil
	}
	entities := make(map[string]string, len(matches))
	for _, m := range matches {
		if _, seen := entities[m[1]]; seen {
			continue // first declaration is binding
		}
		entities[m[1]] = m[2] + m[3]
	}
	return entities
}

func normalizeAttrValues(el *etree.Element) {
	for i := range el.Attr {
		el.Attr[i].Value = attrSpace.Replace(el.Attr[i].Value)
	}
	for _, child := range el.ChildElements() {
		normalizeAttrValues(child)
	}
}
