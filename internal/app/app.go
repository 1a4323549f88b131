// Package app wires configuration into the store, fetcher and pipeline
// shared by the commands.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/JustJay7/eviction-hearing-parser/internal/cache"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/match"
	"github.com/JustJay7/eviction-hearing-parser/internal/pipeline"
	"github.com/JustJay7/eviction-hearing-parser/internal/scraper"
	"github.com/JustJay7/eviction-hearing-parser/internal/store"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"gorm.io/gorm"
)

// App holds the long-lived components of one process.
type App struct {
	Config  *config.Config
	DB      *gorm.DB
	Store   *store.Store
	Pages   *scraper.CachingFetcher
	Reports cache.Cache[*pipeline.Report]

	scraper *scraper.Scraper
	vocab   *vocab.Vocabulary
	matcher *match.Matcher
	fetcher io.Closer
	logger  *logger.Logger
}

// New opens and migrates the store, loads the vocabulary and starts the
// configured fetch backend.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	v, err := LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}
	m, err := match.New(v, cfg.MatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to compile vocabulary: %w", err)
	}

	site, err := scraper.SiteFor(cfg.County, cfg.CourtBaseURL)
	if err != nil {
		return nil, err
	}

	db, err := database.Initialize(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st, err := store.New(db, v, log)
	if err != nil {
		return nil, err
	}

	pages, closer, err := scraper.NewFetcher(cfg, site, cache.NewCache[*scraper.Document](cfg.CacheSize, cfg.CacheTTL), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	return &App{
		Config:  cfg,
		DB:      db,
		Store:   st,
		Pages:   pages,
		Reports: cache.NewCache[*pipeline.Report](cfg.CacheSize, cfg.CacheTTL),
		scraper: scraper.NewScraper(pages, site, scraper.OptionsFromConfig(cfg), log),
		vocab:   v,
		matcher: m,
		fetcher: closer,
		logger:  log,
	}, nil
}

// NewRunner builds a runner for one batch. Runners share the fetch session
// pool; each has its own drain state.
func (a *App) NewRunner() *pipeline.Runner {
	return pipeline.NewRunner(a.scraper, a.Store, a.matcher, a.vocab, pipeline.OptionsFromConfig(a.Config, a.vocab), a.logger)
}

// Close releases the browser and the database connection.
func (a *App) Close() error {
	var firstErr error
	if err := a.fetcher.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close fetcher: %w", err)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close database: %w", err)
		}
	}
	return firstErr
}

// LoadVocabulary reads path, or returns the embedded vocabulary when path
// is empty.
func LoadVocabulary(path string) (*vocab.Vocabulary, error) {
	if path == "" {
		return vocab.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return vocab.Load(data)
}
