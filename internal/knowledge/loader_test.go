package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_PlainText(t *testing.T) {
	for _, name := range []string{"faq.txt", "faq.md", "FAQ.MD"} {
		content := "# Opening hours\n\nMonday to Saturday, 9h to 18h.\n"
		got, err := Load(writeFile(t, name, content))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != content {
			t.Errorf("%s: got %q, want unchanged content", name, got)
		}
	}
}

func TestLoad_HTML(t *testing.T) {
	doc := `<!doctype html>
<html>
<head><title>Policies</title><style>p { color: red; }</style></head>
<body>
  <h1>Return policy</h1>
  <p>Returns are accepted within   30 days.</p>
  <script>alert("x")</script>
  <ul><li>Keep the receipt</li><li>Original packaging</li></ul>
</body>
</html>`

	got, err := Load(writeFile(t, "policies.html", doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, want := range []string{"Return policy", "Returns are accepted within 30 days.", "- Keep the receipt", "- Original packaging"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	for _, unwanted := range []string{"alert", "color: red", "Policies"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("unexpected %q in %q", unwanted, got)
		}
	}
}

func TestLoad_Unsupported(t *testing.T) {
	_, err := Load(writeFile(t, "sheet.xlsx", "binary"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidPDF(t *testing.T) {
	if _, err := Load(writeFile(t, "broken.pdf", "not a pdf")); err == nil {
		t.Error("expected error for invalid pdf")
	}
}

func TestCleanText(t *testing.T) {
	got := cleanText("  a  \n\n\n\n  b \n")
	if got != "a\n\nb" {
		t.Errorf("cleanText = %q", got)
	}
}
