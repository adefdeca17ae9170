// Package diagnostics saves screenshots and page sources when checkout
// goes wrong, and attaches them to notifications.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ScreenshotDir = "screenshots"
	PageDir       = "html_saves"

	stampLayout = "01-02-2006_15_04_05"
)

// Sink writes diagnostics files under a root directory.
type Sink struct {
	root string
	now  func() time.Time
}

// NewSink returns a sink rooted at root. An empty root means the working
// directory.
func NewSink(root string) *Sink {
	return &Sink{root: root, now: time.Now}
}

// Filename returns name_MM-DD-YYYY_HH_MM_SS.ext.
func Filename(name, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", name, t.Format(stampLayout), ext)
}

// SaveScreenshot writes png to the screenshot directory and returns its path.
func (s *Sink) SaveScreenshot(name string, png []byte) (string, error) {
	path, err := s.path(ScreenshotDir, name, "png", s.now())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	log.Debug().Str("path", path).Msg("Saved screenshot")
	return path, nil
}

// SavePage writes the raw page source and a Markdown rendering of it. The
// Markdown file is best effort.
func (s *Sink) SavePage(name, page, baseURL string) (string, error) {
	now := s.now()
	path, err := s.path(PageDir, name, "html", now)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return "", fmt.Errorf("write page source: %w", err)
	}

	if text, err := Markdown(page, baseURL); err != nil {
		log.Debug().Err(err).Str("page", name).Msg("Could not render page as markdown")
	} else {
		mdPath, _ := s.path(PageDir, name, "md", now)
		if err := os.WriteFile(mdPath, []byte(text), 0o644); err != nil {
			log.Debug().Err(err).Str("path", mdPath).Msg("Could not write markdown")
		}
	}
	log.Debug().Str("path", path).Msg("Saved page source")
	return path, nil
}

func (s *Sink) path(dir, name, ext string, t time.Time) (string, error) {
	full := filepath.Join(s.root, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(full, Filename(name, ext, t)), nil
}
