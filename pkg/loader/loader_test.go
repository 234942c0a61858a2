package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvik/docsage/pkg/loader"
)

func TestLoad_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("The capital of France is Paris."), 0o644))

	doc, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "The capital of France is Paris.", doc.Text)
	assert.Len(t, doc.SessionID, 12)
}

func TestLoad_HTMLStripsMarkup(t *testing.T) {
	html := `<html><head><style>body { color: red }</style></head>
	<body><h1>Title</h1><script>alert("x")</script><p>Real   content here.</p></body></html>`

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))

	doc, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Title Real content here.", doc.Text)
	assert.NotContains(t, doc.Text, "alert")
	assert.NotContains(t, doc.Text, "color: red")
}

func TestDeriveSessionID_Stable(t *testing.T) {
	a := loader.DeriveSessionID("same content")
	b := loader.DeriveSessionID("same content")
	c := loader.DeriveSessionID("different content")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFromText(t *testing.T) {
	doc := loader.FromText("scan.pdf", "extracted text")
	assert.Equal(t, "scan.pdf", doc.Name)
	assert.Equal(t, "extracted text", doc.Text)
	assert.Equal(t, loader.DeriveSessionID("extracted text"), doc.SessionID)
}
