package scraper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
)

// FixtureFetcher serves recorded pages from a file system laid out by
// Locator.Key: search/<case>.html, register/<case>.html,
// calendar/<yyyy-mm-dd>.html and filings/<after>_<before>_<prefix>.html.
type FixtureFetcher struct {
	fsys fs.FS
}

func NewFixtureFetcher(fsys fs.FS) *FixtureFetcher {
	return &FixtureFetcher{fsys: fsys}
}

// NewFixtureDirFetcher serves the pages under dir.
func NewFixtureDirFetcher(dir string) (*FixtureFetcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture dir %s is not a directory", dir)
	}
	return NewFixtureFetcher(os.DirFS(dir)), nil
}

// Fetch reads the page of loc. A missing case or register page is
// ErrCaseNotFound; a missing calendar or filings page is an empty page.
func (f *FixtureFetcher) Fetch(ctx context.Context, loc Locator) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := loc.Key() + ".html"
	data, err := fs.ReadFile(f.fsys, name)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && (loc.Kind == KindCase || loc.Kind == KindRegister):
		return nil, fmt.Errorf("fixture %s: %w", name, apperrors.ErrCaseNotFound)
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	default:
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}

	return &Document{
		Locator:   loc,
		URL:       "fixture://" + name,
		HTML:      string(data),
		FetchedAt: time.Now(),
	}, nil
}
