package dump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ForumMirror/internal/ports"
)

// Dumper archives raw pages under <dir>/<YYYY-MM-DD>/<HH-MM-SS>.html (UTC).
// Files are never overwritten; a second page in the same second gets a random suffix.
type Dumper struct {
	dir string
	now func() time.Time
}

var _ ports.Dumper = (*Dumper)(nil)

// NewDumper writes under dir.
func NewDumper(dir string) *Dumper {
	return &Dumper{dir: dir, now: time.Now}
}

// Save writes content to a new file and returns its path.
func (d *Dumper) Save(content []byte) (string, error) {
	now := d.now().UTC()
	dayDir := filepath.Join(d.dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}

	base := now.Format("15-04-05")
	path := filepath.Join(dayDir, base+".html")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		path = filepath.Join(dayDir, base+"-"+uuid.NewString()[:8]+".html")
		file, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}

	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("write dump %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close dump %s: %w", path, err)
	}
	return path, nil
}
