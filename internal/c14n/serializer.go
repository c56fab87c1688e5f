package c14n

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// Serializer writes documents in Exclusive XML Canonicalization 1.0 form,
// comments preserved.
type Serializer struct {
	canonicalizer dsig.Canonicalizer
}

// NewSerializer creates a serializer with an empty inclusive-namespace prefix list.
func NewSerializer() *Serializer {
	return &Serializer{
		canonicalizer: dsig.MakeC14N10ExclusiveWithCommentsCanonicalizerWithPrefixList(""),
	}
}

// Algorithm returns the canonicalization algorithm URI.
func (s *Serializer) Algorithm() string {
	return string(s.canonicalizer.Algorithm())
}

// Canonicalize serializes doc. The document is consumed: namespace and
// attribute normalization happen in place, so doc must not be reused.
// Failures are returned as *Error with KindCanonicalize.
func (s *Serializer) Canonicalize(doc *etree.Document) (string, error) {
	if doc == nil || doc.Root() == nil {
		return "", &Error{Kind: KindCanonicalize, Err: ErrNoRoot}
	}

	var sb strings.Builder
	seenRoot := false
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			dropEmptyDefaultNamespace(t, "")
			out, err := s.canonicalizer.Canonicalize(t)
			if err != nil {
				return "", &Error{Kind: KindCanonicalize, Err: err}
			}
			sb.Write(out)
			seenRoot = true
		case *etree.Comment:
			writeDocumentNode(&sb, "<!--"+t.Data+"-->", seenRoot)
		case *etree.ProcInst:
			if strings.EqualFold(t.Target, "xml") {
				continue
			}
			writeDocumentNode(&sb, procInst(t), seenRoot)
		default:
			// CharData and Directive outside the document element are not
			// part of the canonical form.
		}
	}
	return sb.String(), nil
}

// writeDocumentNode emits a comment or PI that sits outside the document
// element: before it, the node is followed by a line feed; after it, the node
// is preceded by one.
func writeDocumentNode(sb *strings.Builder, node string, afterRoot bool) {
	if afterRoot {
		sb.WriteByte('\n')
		sb.WriteString(node)
		return
	}
	sb.WriteString(node)
	sb.WriteByte('\n')
}

// dropEmptyDefaultNamespace removes xmlns="" from elements that have no
// non-empty default namespace in scope. inScope is the default namespace
// declared by the nearest ancestor.
func dropEmptyDefaultNamespace(el *etree.Element, inScope string) {
	for _, a := range el.Attr {
		if a.Space != "" || a.Key != "xmlns" {
			continue
		}
		if a.Value == "" && inScope == "" {
			el.RemoveAttr("xmlns")
		}
		inScope = a.Value
		break
	}
	for _, child := range el.ChildElements() {
		dropEmptyDefaultNamespace(child, inScope)
	}
}

func procInst(p *etree.ProcInst) string {
	if p.Inst == "" {
		return fmt.Sprintf("<?%s?>", p.Target)
	}
	return fmt.Sprintf("<?%s %s?>", p.Target, p.Inst)
}
