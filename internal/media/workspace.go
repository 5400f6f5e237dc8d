package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp"
)

// Workspace is a private temporary directory for one job. Callers defer
// Cleanup right after creating it.
type Workspace struct {
	dir string
}

// NewWorkspace creates a directory under base (os.TempDir when empty).
func NewWorkspace(base, prefix string) (*Workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path returns name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.dir)
}

// ImageSize decodes only the header of an image file (webp, or any format
// registered with the image package) and returns its dimensions.
func ImageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
