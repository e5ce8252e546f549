package history

// This file contains shared history utilities for discovering and loading
// report artifacts below a reports root.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/viewer"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// loadConcurrency bounds the number of artifacts parsed at once.
const loadConcurrency = 8

// File is a discovered artifact.
type File struct {
	Path    string
	ModTime time.Time
}

// Name returns the name a session is known by: its timestamp directory for
// directory artifacts, otherwise the file name without extension.
func (f File) Name() string {
	if filepath.Base(f.Path) == model.ReportFileName {
		return filepath.Base(filepath.Dir(f.Path))
	}
	return strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
}

type Entry struct {
	File
	Report *model.RunReport
}

// SessionID returns the session ID of the entry, if recorded.
func (e Entry) SessionID() string {
	if len(e.Report.Metadata) == 0 {
		return ""
	}
	return e.Report.Metadata[0].SessionID
}

// GetReportsRoot checks that root exists and returns it.
func GetReportsRoot(root string) (string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: no reports found in %s", model.ErrReportNotFound, root)
	}
	return root, nil
}

// Discover finds artifacts directly below root (*.json) and in session
// directories (*/*.json), newest first by modification time.
func Discover(root string) ([]File, error) {
	var paths []string
	for _, pattern := range []string{"*.json", filepath.Join("*", "*.json")} {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", root, err)
		}
		paths = append(paths, matches...)
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, File{Path: path, ModTime: info.ModTime()})
	}

	// Sort by modification time (newest first)
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Path > files[j].Path
	})
	return files, nil
}

// FilterByDate keeps artifacts whose session name or modification date
// matches date (DD-MM-YYYY).
func FilterByDate(files []File, date string) []File {
	if date == "" {
		return files
	}
	var filtered []File
	for _, f := range files {
		if strings.HasPrefix(f.Name(), date) || f.ModTime.Format(model.DateLayout) == date {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// LoadEntries loads files concurrently. Artifacts that fail to load are
// logged and skipped; the order of files is kept.
func LoadEntries(ctx context.Context, logger zerolog.Logger, files []File) ([]Entry, error) {
	loaded := make([]*Entry, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := viewer.Load(f.Path)
			if err != nil {
				logger.Warn().Err(err).Str("path", f.Path).Msg("Failed to load report")
				return nil
			}
			loaded[i] = &Entry{File: f, Report: report}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, e := range loaded {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

// Select picks a file by selector: "0" is the newest, "-1" the one before,
// and so on. Any other selector matches a session name or session ID prefix.
// files must be sorted newest first.
func Select(ctx context.Context, logger zerolog.Logger, files []File, selector string) (*Entry, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no reports available", model.ErrReportNotFound)
	}

	if parsed, err := strconv.ParseInt(selector, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", selector)
		}
		index := int(-parsed)
		if index >= len(files) {
			return nil, fmt.Errorf("index %s out of range (only %d reports)", selector, len(files))
		}
		report, err := viewer.Load(files[index].Path)
		if err != nil {
			return nil, err
		}
		return &Entry{File: files[index], Report: report}, nil
	}

	for _, f := range files {
		if strings.HasPrefix(f.Name(), selector) {
			report, err := viewer.Load(f.Path)
			if err != nil {
				return nil, err
			}
			return &Entry{File: f, Report: report}, nil
		}
	}

	entries, err := LoadEntries(ctx, logger, files)
	if err != nil {
		return nil, err
	}
	prefix := strings.ToLower(selector)
	for i := range entries {
		if id := entries[i].SessionID(); id != "" && strings.HasPrefix(strings.ToLower(id), prefix) {
			return &entries[i], nil
		}
	}

	return nil, fmt.Errorf("%w: no report matching %s", model.ErrReportNotFound, selector)
}
