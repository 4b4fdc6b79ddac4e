// Package file tails files matched by glob patterns and remembers how far it
// read them across restarts.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/sources"
	"github.com/erhlee-bird/vector/telemetry"
)

const (
	SourceType          = "file"
	CheckpointsFileName = "checkpoints.json"
	DefaultCooldown     = time.Second
)

type Config struct {
	Include []string `yaml:"include" validate:"required,min=1"`
	Exclude []string `yaml:"exclude"`
	// DataDir overrides the global data_dir for the checkpoints.
	DataDir string `yaml:"data_dir"`
	// FileKey names the field receiving the path an event was read from.
	FileKey string `yaml:"file_key"`
	// ReadFrom is where files without a checkpoint start: beginning or end.
	ReadFrom   string `yaml:"read_from" validate:"omitempty,oneof=beginning end"`
	CooldownMS int    `yaml:"glob_minimum_cooldown_ms" validate:"gte=0"`
}

func init() {
	config.RegisterSource(SourceType, func() config.SourceConfig { return &Config{} })
}

func (c *Config) OutputType() events.DataType { return events.DataTypeLog }
func (c *Config) SourceType() string          { return SourceType }

func (c *Config) Build(ctx context.Context, cx config.SourceContext) (sources.Source, error) {
	dir, err := cx.Globals.ResolveAndMakeDataSubdir(c.DataDir, cx.Name)
	if err != nil {
		return nil, err
	}
	for _, pattern := range append(append([]string(nil), c.Include...), c.Exclude...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	checkpoints, err := loadCheckpoints(filepath.Join(dir, CheckpointsFileName))
	if err != nil {
		return nil, err
	}

	cooldown := DefaultCooldown
	if c.CooldownMS > 0 {
		cooldown = time.Duration(c.CooldownMS) * time.Millisecond
	}
	fileKey := c.FileKey
	if fileKey == "" {
		fileKey = "file"
	}
	t := &tailer{
		cfg:         c,
		name:        cx.Name,
		fileKey:     fileKey,
		schema:      cx.Globals.LogSchema,
		out:         cx.Out,
		checkpoints: checkpoints,
		path:        filepath.Join(dir, CheckpointsFileName),
	}

	return func() error {
		defer t.save()
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			if !t.scan(ctx) {
				return nil
			}
			t.save()
			timer.Reset(cooldown)
		}
	}, nil
}

type tailer struct {
	cfg         *Config
	name        string
	fileKey     string
	schema      config.LogSchema
	out         chan<- any
	checkpoints map[string]int64
	path        string
}

// paths lists the files matched by the include patterns and no exclude
// pattern, sorted.
func (t *tailer) paths() []string {
	seen := map[string]bool{}
	var paths []string
	for _, pattern := range t.cfg.Include {
		matches, _ := filepath.Glob(pattern)
		for _, path := range matches {
			if seen[path] || t.excluded(path) {
				continue
			}
			if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[path] = true
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func (t *tailer) excluded(path string) bool {
	for _, pattern := range t.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// scan reads every complete line written since the last scan. It returns
// false once shutdown was requested.
func (t *tailer) scan(ctx context.Context) bool {
	for _, path := range t.paths() {
		if !t.read(ctx, path) {
			return false
		}
	}
	return true
}

func (t *tailer) read(ctx context.Context, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("file source: failed to open file", "component", t.name, "path", path, "error", err)
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return true
	}
	offset, ok := t.checkpoints[path]
	switch {
	case !ok && t.cfg.ReadFrom == "end":
		offset = info.Size()
	case offset > info.Size():
		// Truncated.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		slog.Warn("file source: failed to seek", "component", t.name, "path", path, "error", err)
		return true
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial line is picked up once it is complete.
			if !errors.Is(err, io.EOF) {
				slog.Warn("file source: read failed", "component", t.name, "path", path, "error", err)
			}
			break
		}
		offset += int64(len(line))
		event := t.schema.NewLogEvent(strings.TrimRight(line, "\r\n"), SourceType)
		event.Insert(t.fileKey, path)
		if !sources.Emit(ctx, t.out, event) {
			return false
		}
		telemetry.Processed("source", SourceType, t.name)
		t.checkpoints[path] = offset
	}
	t.checkpoints[path] = offset
	return true
}

func (t *tailer) save() {
	if err := saveCheckpoints(t.path, t.checkpoints); err != nil {
		slog.Error("file source: failed to write checkpoints", "component", t.name, "error", err)
	}
}

func loadCheckpoints(path string) (map[string]int64, error) {
	checkpoints := map[string]int64{}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return checkpoints, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		return nil, fmt.Errorf("corrupt checkpoints %q: %w", path, err)
	}
	return checkpoints, nil
}

func saveCheckpoints(path string, checkpoints map[string]int64) error {
	data, err := json.Marshal(checkpoints)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
