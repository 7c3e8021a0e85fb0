package export

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"notesd/internal/note"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Exporter writes notes out as plain text files. The filesystem is an
// afero.Fs so tests run against the in-memory implementation.
type Exporter struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Exporter {
	return &Exporter{fs: fs}
}

// Export writes one .txt file per note into a fresh timestamped
// directory under dir, returning the directory path and the number of
// files written.
func (e *Exporter) Export(dir string, notes []*note.Note) (string, int, error) {
	timestamp := time.Now().Format("2006-01-02T15-04-05")
	exportPath := filepath.Join(dir, "notes-export-"+timestamp)

	if err := e.fs.MkdirAll(exportPath, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	count := 0
	for _, n := range notes {
		name := fileName(n)
		if err := afero.WriteFile(e.fs, filepath.Join(exportPath, name), []byte(render(n)), 0644); err != nil {
			return "", count, fmt.Errorf("failed to write %s: %w", name, err)
		}
		count++
	}
	return exportPath, count, nil
}

func fileName(n *note.Note) string {
	title := strings.Trim(unsafeChars.ReplaceAllString(n.Title, "_"), "_")
	if title == "" {
		title = fmt.Sprintf("note_%d", n.ID)
	}
	if len(title) > 30 {
		title = title[:30]
	}
	return fmt.Sprintf("%s_%d.txt", title, n.ID)
}

func render(n *note.Note) string {
	var b strings.Builder
	if strings.TrimSpace(n.Title) != "" {
		fmt.Fprintf(&b, "TITLE: %s\n\n", n.Title)
	}
	fmt.Fprintf(&b, "%s\n\n", n.Text)
	b.WriteString("---------------------\n")
	fmt.Fprintf(&b, "Created: %s\n", time.UnixMilli(n.CreatedAt).Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Color: %s\n", n.Color)
	fmt.Fprintf(&b, "Font Size: %s\n", n.FontSize)
	return b.String()
}
