// Package htmldoc finds formula placeholders in an HTML page and exposes
// them as mathrender elements, so rendered markup lands back in the tree.
//
// A placeholder is any element carrying a data-formula attribute (the
// attribute holds the formula) or the math-formula class (the text content
// holds it). data-display="inline" or "block" picks the mode; otherwise span
// elements are inline and everything else is display math.
package htmldoc

import (
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/net/html"

	"github.com/Krishna8167/mathrender"
)

const (
	AttrFormula = "data-formula"
	AttrDisplay = "data-display"
	AttrState   = "data-state"
	AttrHash    = "data-formula-hash"
	ClassMarker = "math-formula"
	ClassError  = "math-error"
)

// Document is a parsed page. Formula elements share the document lock, so
// the tree may be mutated from the render goroutine while Render waits.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	formulas []*Formula
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{root: root}
	d.collect(root)
	return d, nil
}

func (d *Document) collect(n *html.Node) {
	if n.Type == html.ElementNode {
		if formula, ok := formulaOf(n); ok {
			inline := isInline(n)
			setAttr(n, AttrHash, Fingerprint(formula, inline))
			d.formulas = append(d.formulas, &Formula{
				doc:     d,
				node:    n,
				formula: formula,
				inline:  inline,
			})
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.collect(c)
	}
}

func formulaOf(n *html.Node) (string, bool) {
	if v, ok := getAttr(n, AttrFormula); ok {
		return v, true
	}
	if hasClass(n, ClassMarker) {
		return textContent(n), true
	}
	return "", false
}

func isInline(n *html.Node) bool {
	v, _ := getAttr(n, AttrDisplay)
	switch v {
	case "inline":
		return true
	case "block":
		return false
	}
	return n.Data == "span"
}

// Formulas returns the placeholders in document order.
func (d *Document) Formulas() []*Formula {
	return slices.Clone(d.formulas)
}

// Items returns one render request per placeholder.
func (d *Document) Items() []mathrender.Item {
	items := make([]mathrender.Item, len(d.formulas))
	for i, f := range d.formulas {
		items[i] = mathrender.Item{Element: f, Formula: f.formula, Inline: f.inline}
	}
	return items
}

// Render serializes the current tree.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// Fingerprint is a short BLAKE3 digest identifying a formula and its mode.
func Fingerprint(formula string, inline bool) string {
	mode := "display"
	if inline {
		mode = "inline"
	}

	h := blake3.New()
	_, _ = h.WriteString(mode + ":" + mathrender.Clean(formula))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	v, _ := getAttr(n, "class")
	return slices.Contains(strings.Fields(v), class)
}

func setClass(n *html.Node, class string, on bool) {
	v, _ := getAttr(n, "class")
	fields := strings.Fields(v)
	fields = slices.DeleteFunc(fields, func(f string) bool { return f == class })
	if on {
		fields = append(fields, class)
	}
	setAttr(n, "class", strings.Join(fields, " "))
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
