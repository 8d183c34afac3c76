package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Downloader stores content without any privileged host
type Downloader interface {
	Download(ctx context.Context, name string, content string) error
}

// DirDownloader writes downloads into a directory, picking "name (1).ext"
// style names instead of overwriting
type DirDownloader struct {
	Dir string
}

// NewDirDownloader creates a downloader for dir. An empty dir means
// ~/Downloads, or the working directory when there is no home.
func NewDirDownloader(dir string) *DirDownloader {
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, "Downloads")
		} else {
			dir = "."
		}
	}
	return &DirDownloader{Dir: dir}
}

// Download writes content under a free name in the directory
func (d *DirDownloader) Download(ctx context.Context, name string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(d.Dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create download: %w", err)
		}

		_, werr := f.WriteString(content)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("failed to write download: %w", werr)
		}
		if cerr != nil {
			return fmt.Errorf("failed to write download: %w", cerr)
		}

		log.Info().Str("component", "content-adapter").Str("path", path).Msg("Saved as download")
		return nil
	}
}
