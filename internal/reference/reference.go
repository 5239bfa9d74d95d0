// Package reference loads the reference compound index and keeps it current.
package reference

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ChrisMcGann/empcpd/pkg/identity"
	"github.com/ChrisMcGann/empcpd/pkg/reader/compounds"
)

// debounce delays a reload until writes to the reference file settle.
const debounce = 200 * time.Millisecond

// Load reads and indexes a reference compound database. The index version is
// the file name and modification time.
func Load(ctx context.Context, path string) (*identity.Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}

	list, err := compounds.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	version := fmt.Sprintf("%s@%s", filepath.Base(path), info.ModTime().UTC().Format(time.RFC3339))
	idx, err := identity.NewIndex(list, version)
	if err != nil {
		return nil, fmt.Errorf("failed to index reference compounds: %w", err)
	}
	return idx, nil
}

// NewRegistry loads path into a registry. A missing or unreadable reference
// yields an empty registry so that assembly still runs without identities.
func NewRegistry(ctx context.Context, path string, logger *slog.Logger) *identity.Registry {
	if path == "" {
		logger.Warn("no reference compound database configured")
		return identity.NewRegistry(nil)
	}

	idx, err := Load(ctx, path)
	if err != nil {
		logger.Warn("reference compound database unavailable", slog.String("path", path), slog.Any("error", err))
		return identity.NewRegistry(nil)
	}

	logger.Debug("loaded reference compounds",
		slog.String("path", path),
		slog.String("version", idx.Version()),
		slog.Int("compounds", idx.Len()))
	return identity.NewRegistry(idx)
}

// Watch rebuilds the index whenever path changes and swaps it into reg.
// A failed rebuild keeps the active index. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, reg *identity.Registry, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors and downloads often replace the file
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, _ := filepath.Abs(event.Name); name != abs {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			idx, err := Load(ctx, abs)
			if err != nil {
				logger.Error("reference reload failed, keeping active index", slog.String("path", path), slog.Any("error", err))
				continue
			}
			prev := reg.Swap(idx)
			attrs := []any{slog.String("version", idx.Version()), slog.Int("compounds", idx.Len())}
			if prev != nil {
				attrs = append(attrs, slog.String("previous", prev.Version()))
			}
			logger.Info("reference index swapped", attrs...)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", slog.Any("error", err))
		}
	}
}
