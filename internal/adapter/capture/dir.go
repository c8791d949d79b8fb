package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// DirSource yields the newest image written to a directory by an external
// screenshot tool. A file is returned at most once per session, so every
// active session sees each new screenshot.
type DirSource struct {
	dir     string
	pattern glob.Glob // nil matches every image

	mu   sync.Mutex
	seen map[string]dirMark // by session id
}

type dirMark struct {
	path string
	mod  time.Time
}

// NewDirSource creates a directory source. A non-empty pattern (for example
// "Screenshot*.png") restricts which file names are considered.
func NewDirSource(dir, pattern string) (*DirSource, error) {
	s := &DirSource{dir: dir, seen: make(map[string]dirMark)}
	if pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid capture pattern '%s': %w", pattern, err)
		}
		s.pattern = g
	}
	return s, nil
}

// Capture returns the newest image not yet returned to sessionID.
func (s *DirSource) Capture(ctx context.Context, sessionID string) (domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawFrame{}, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return domain.RawFrame{}, fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
	}

	var newestPath string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		if s.pattern != nil && !s.pattern.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestMod = info.ModTime()
			newestPath = filepath.Join(s.dir, entry.Name())
		}
	}
	if newestPath == "" {
		return domain.RawFrame{}, fmt.Errorf("%w: no images in %s", domain.ErrCaptureUnavailable, s.dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.seen[sessionID]; ok && newestPath == last.path && !newestMod.After(last.mod) {
		return domain.RawFrame{}, fmt.Errorf("%w: no new image in %s", domain.ErrCaptureUnavailable, s.dir)
	}

	data, err := os.ReadFile(newestPath)
	if err != nil {
		return domain.RawFrame{}, fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
	}
	s.seen[sessionID] = dirMark{path: newestPath, mod: newestMod}

	return domain.RawFrame{
		Data:       data,
		MIMEType:   imageExtensions[strings.ToLower(filepath.Ext(newestPath))],
		Ref:        newestPath,
		CapturedAt: newestMod.UTC(),
	}, nil
}

// Release drops what the source remembers about a finished session.
func (s *DirSource) Release(sessionID string) {
	s.mu.Lock()
	delete(s.seen, sessionID)
	s.mu.Unlock()
}
