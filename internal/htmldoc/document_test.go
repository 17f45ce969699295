package htmldoc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krishna8167/mathrender"
)

const page = `<!DOCTYPE html>
<html><body>
<h1>Field equations</h1>
<p>Energy: <span data-formula="E = mc^2"></span></p>
<div class="math-formula">$$\nabla \cdot \vec{E} = 0$$</div>
<div data-formula="a+b" data-display="inline"></div>
<span class="note">not math</span>
</body></html>`

func parsePage(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestParseFindsPlaceholders(t *testing.T) {
	doc := parsePage(t)
	formulas := doc.Formulas()
	require.Len(t, formulas, 3)

	assert.Equal(t, "E = mc^2", formulas[0].Formula())
	assert.True(t, formulas[0].Inline())
	assert.Equal(t, `$$\nabla \cdot \vec{E} = 0$$`, formulas[1].Formula())
	assert.False(t, formulas[1].Inline())
	assert.True(t, formulas[2].Inline())

	items := doc.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "a+b", items[2].Formula)
	assert.Same(t, formulas[0], items[0].Element)
}

func TestFingerprint(t *testing.T) {
	assert.Len(t, Fingerprint("x", true), 16)
	assert.Equal(t, Fingerprint("$x$", true), Fingerprint("x", true))
	assert.NotEqual(t, Fingerprint("x", true), Fingerprint("x", false))

	var out strings.Builder
	require.NoError(t, parsePage(t).Render(&out))
	assert.Contains(t, out.String(), `data-formula-hash="`+Fingerprint("E = mc^2", true)+`"`)
}

func TestSetMarkupReplacesChildren(t *testing.T) {
	doc := parsePage(t)
	f := doc.Formulas()[1]

	f.SetSource(`\[x\]`)
	assert.Equal(t, `\[x\]`, f.Source())

	f.SetMarkup(`<span class="katex-display"><b>x</b></span>`)
	f.SetState(mathrender.StateRendered)

	var out strings.Builder
	require.NoError(t, doc.Render(&out))
	html := out.String()
	assert.Contains(t, html, `<span class="katex-display"><b>x</b></span>`)
	assert.Contains(t, html, `data-state="rendered"`)
	assert.NotContains(t, html, "$$")

	f.SetMarkup("")
	out.Reset()
	require.NoError(t, doc.Render(&out))
	assert.NotContains(t, out.String(), "katex-display")
}

func TestSetStateToggleErrorClass(t *testing.T) {
	doc := parsePage(t)
	f := doc.Formulas()[1]

	f.SetState(mathrender.StateError)
	assert.Equal(t, mathrender.StateError, f.State())
	assert.True(t, hasClass(f.node, ClassError))
	assert.True(t, hasClass(f.node, ClassMarker))

	f.SetState(mathrender.StateRendered)
	assert.False(t, hasClass(f.node, ClassError))
	assert.True(t, hasClass(f.node, ClassMarker))
}

type echoEngine struct{}

func (echoEngine) Ready() bool { return true }

func (echoEngine) Typeset(_ context.Context, elements []mathrender.Element) error {
	for _, el := range elements {
		el.SetMarkup(`<span class="katex">` + mathrender.Clean(el.Source()) + `</span>`)
	}
	return nil
}

func (echoEngine) Clear(elements []mathrender.Element) {}

func TestRenderDocumentThroughOrchestrator(t *testing.T) {
	doc := parsePage(t)
	o := mathrender.New(echoEngine{})
	defer o.Close()

	require.NoError(t, o.RenderBatch(context.Background(), doc.Items()))

	var out strings.Builder
	require.NoError(t, doc.Render(&out))
	html := out.String()
	assert.Contains(t, html, `<span class="katex">E = mc^2</span>`)
	assert.Contains(t, html, `<span class="katex">\nabla \cdot \overrightarrow{E} = 0</span>`)
	assert.Equal(t, 3, strings.Count(html, `data-state="rendered"`))
}
