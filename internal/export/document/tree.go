package document

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// el creates an element node with the given children
func el(tag string, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
	appendChildren(n, children...)
	return n
}

// text creates a text node. Escaping happens once, at render.
func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// comment creates a comment node with "--" neutralized
func comment(s string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: " " + strings.ReplaceAll(s, "--", "- -") + " "}
}

func appendChildren(parent *html.Node, children ...*html.Node) {
	for _, c := range children {
		if c != nil {
			parent.AppendChild(c)
		}
	}
}

// attrs builds an attribute list from key/value pairs
func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

// style joins CSS declarations into a single attribute list
func style(decls ...string) []html.Attribute {
	return attrs("style", strings.Join(decls, "; "))
}

// withAttrs appends key/value pairs to an existing list
func withAttrs(base []html.Attribute, kv ...string) []html.Attribute {
	return append(base, attrs(kv...)...)
}

// lines renders s with each newline replaced by a <br>
func lines(s string) []*html.Node {
	parts := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]*html.Node, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			out = append(out, el("br", nil))
		}
		if p != "" {
			out = append(out, text(p))
		}
	}
	return out
}

// newDocument returns a document node holding a doctype and the html root
func newDocument(root *html.Node) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)
	return doc
}

// render serializes a tree
func render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}
