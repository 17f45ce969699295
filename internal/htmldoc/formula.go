package htmldoc

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/Krishna8167/mathrender"
)

// Formula is one placeholder node. It implements mathrender.Element.
type Formula struct {
	doc     *Document
	node    *html.Node
	formula string
	inline  bool
	source  string
	markup  string
	state   mathrender.State
}

// Formula returns the formula text as written in the page.
func (f *Formula) Formula() string { return f.formula }

func (f *Formula) Inline() bool { return f.inline }

func (f *Formula) Source() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.source
}

// SetSource replaces the node's children with the formula source as text.
func (f *Formula) SetSource(src string) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	f.source = src
	f.markup = ""
	replaceChildren(f.node, []*html.Node{{Type: html.TextNode, Data: src}})
}

func (f *Formula) Markup() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.markup
}

// SetMarkup parses markup as a fragment of the node and installs it as the
// node's children. Markup that does not parse is inserted as text.
func (f *Formula) SetMarkup(markup string) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	f.markup = markup
	if markup == "" {
		replaceChildren(f.node, []*html.Node{{Type: html.TextNode, Data: f.source}})
		return
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), f.node)
	if err != nil {
		nodes = []*html.Node{{Type: html.TextNode, Data: markup}}
	}
	replaceChildren(f.node, nodes)
}

// SetState mirrors the render state into data-state and the error class.
func (f *Formula) SetState(state mathrender.State) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	f.state = state
	setAttr(f.node, AttrState, state.String())
	setClass(f.node, ClassError, state == mathrender.StateError)
}

func (f *Formula) State() mathrender.State {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.state
}

func replaceChildren(n *html.Node, children []*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range children {
		n.AppendChild(c)
	}
}
