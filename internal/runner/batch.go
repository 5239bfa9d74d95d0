package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// settle is how long an ion table must stay unchanged before it is processed in watch mode.
const settle = 500 * time.Millisecond

// BatchResult reports a directory run.
type BatchResult struct {
	Summaries []*Summary
	Failed    map[string]error // Input path -> error
}

// IsIonTable reports whether a path looks like an ion table.
func IsIonTable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}

// OutputPath maps an input table onto outDir with the given extension.
func OutputPath(input, outDir, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, base+ext)
}

// ProcessDir assembles every ion table in inDir, running up to workers files
// at once. A failing file is reported in the result and does not stop the others.
func (r *Runner) ProcessDir(ctx context.Context, inDir, outDir, ext string, workers int) (*BatchResult, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var inputs []string
	for _, e := range entries {
		if !e.IsDir() && IsIonTable(e.Name()) {
			inputs = append(inputs, filepath.Join(inDir, e.Name()))
		}
	}
	sort.Strings(inputs)

	result := &BatchResult{Failed: make(map[string]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, input := range inputs {
		input := input
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := r.RunFile(gctx, input, OutputPath(input, outDir, ext))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger().Error("failed to process ion table", slog.String("input", input), slog.Any("error", err))
				result.Failed[input] = err
				return nil
			}
			result.Summaries = append(result.Summaries, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Summaries, func(i, j int) bool {
		return result.Summaries[i].Input < result.Summaries[j].Input
	})
	return result, nil
}

// WatchDir processes ion tables as they are created or rewritten in inDir
// until ctx is cancelled. Each table is processed once its writes settle.
// A table rewritten while its run is in flight is processed again after that
// run finishes, never concurrently with it.
func (r *Runner) WatchDir(ctx context.Context, inDir, outDir, ext string) error {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(inDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", inDir, err)
	}
	r.logger().Info("watching for ion tables", slog.String("dir", inDir))

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	run := r.runFile
	if run == nil {
		run = r.RunFile
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	stop := make(chan struct{})
	defer close(stop)

	finished := make(chan string)
	inFlight := make(map[string]bool)
	pending := make(map[string]bool)
	start := func(input string) {
		inFlight[input] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := run(ctx, input, OutputPath(input, outDir, ext)); err != nil {
				r.logger().Error("failed to process ion table", slog.String("input", input), slog.Any("error", err))
			}
			select {
			case finished <- input:
			case <-stop:
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsIonTable(event.Name) {
				continue
			}
			name := event.Name
			if t, ok := timers[name]; ok {
				t.Stop()
			}
			timers[name] = time.AfterFunc(settle, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case input := <-ready:
			delete(timers, input)
			if inFlight[input] {
				pending[input] = true
				r.logger().Debug("ion table changed during its run, requeued", slog.String("input", input))
				continue
			}
			start(input)

		case input := <-finished:
			delete(inFlight, input)
			if pending[input] {
				delete(pending, input)
				start(input)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger().Error("watcher error", slog.Any("error", err))
		}
	}
}
