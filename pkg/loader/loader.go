// Package loader turns uploaded files into plain document text. Binary
// formats (PDF, images) are handled upstream by the extraction layer; the
// loader covers plain text, markdown and HTML, and derives the stable
// session id from content.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anvik/docsage/internal/models"
)

// Load reads a document file and returns its plain text plus a derived
// session id. HTML markup is stripped; everything else is passed through.
func Load(path string) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("reading document: %w", err)
	}

	text := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = StripHTML(text)
		if err != nil {
			return models.Document{}, fmt.Errorf("extracting text from %s: %w", path, err)
		}
	}

	return FromText(filepath.Base(path), text), nil
}

// FromText wraps already-extracted text handed over by the extraction layer.
func FromText(name, text string) models.Document {
	return models.Document{
		SessionID: DeriveSessionID(text),
		Name:      name,
		Text:      text,
	}
}

// DeriveSessionID hashes document content so re-uploading the same document
// resumes its existing session instead of creating a new one.
func DeriveSessionID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}

// StripHTML reduces an HTML page to its visible text.
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return strings.Join(strings.Fields(text), " "), nil
}
