// Package archive writes raw weather responses to disk, one timestamped
// JSON file per successful query.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/awerner/weatherquery/internal/observability"
)

// Writer appends raw response bodies to a dedicated output directory.
// The directory is created on demand at first write.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a Writer rooted at dir. The directory is not created
// until the first Save.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Save writes body to weather_data_<city>_<YYYYMMDD_HHMMSS>.json under the
// output directory and returns the full path written.
func (w *Writer) Save(city string, body []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := fmt.Sprintf("weather_data_%s_%s.json", sanitizeCity(city), w.now().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write response file: %w", err)
	}

	observability.ArchivedResponsesTotal.Inc()
	return path, nil
}

// sanitizeCity makes a city name safe for use in a filename: spaces become
// underscores, anything outside letters/digits/hyphen/underscore is dropped.
func sanitizeCity(city string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(city) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		case r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
