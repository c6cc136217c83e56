// Package knowledge loads reference documents used as an assistant's custom
// knowledge block.
package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// MaxFileSize bounds the size of a knowledge file read from disk.
const MaxFileSize = 10 << 20 // 10MB

// ErrUnsupportedFormat is returned for file extensions Load cannot read.
var ErrUnsupportedFormat = errors.New("unsupported knowledge file format")

var blankLines = regexp.MustCompile(`\n{3,}`)

// Load reads path and returns its text content. Plain text and markdown are
// returned unchanged; HTML is reduced to its visible text; PDF is converted
// to plain text.
func Load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading knowledge file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("knowledge file %s is %d bytes, limit is %d", path, info.Size(), MaxFileSize)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", ".markdown", "":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading knowledge file: %w", err)
		}
		return string(b), nil
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("reading knowledge file: %w", err)
		}
		defer f.Close()
		return HTMLText(f)
	case ".pdf":
		return pdfText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// HTMLText returns the visible text of an HTML document, one block per line.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)
	return cleanText(sb.String()), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "template", "head":
			return
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "section", "article", "table", "tr", "ul", "ol",
			"h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
		}
	}
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return cleanText(buf.String()), nil
}
