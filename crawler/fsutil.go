package crawler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
	"go.uber.org/zap"
)

// safeReadDir lists dir in natural order. Any error is logged and treated as
// an empty directory so one unreadable subtree never aborts a batch.
func (c *Crawler) safeReadDir(dir string) []os.DirEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.fsLog.Error("access denied or error reading directory", zap.String("path", dir), zap.Error(err))
		}
		return nil
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []os.DirEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return natsort.Compare(entries[i].Name(), entries[j].Name())
	})
}

// isDir follows symlinks; a stat failure counts as "not a directory".
func (c *Crawler) isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.fsLog.Error("error checking directory", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return info.IsDir()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// firstFile returns the first regular file of dir (natural order) accepted by
// keep, or nil.
func (c *Crawler) firstFile(dir string, keep func(name string) bool) *string {
	for _, entry := range c.safeReadDir(dir) {
		if entry.IsDir() || !keep(entry.Name()) {
			continue
		}
		p := filepath.ToSlash(filepath.Join(dir, entry.Name()))
		return &p
	}
	return nil
}

func hasExt(ext string) func(string) bool {
	return func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ext)
	}
}

func anyName(string) bool { return true }

// hasAffixes is the literal form of the glob "{prefix}*{suffix}"; folder
// names may carry glob metacharacters, so filepath.Match is not used.
func hasAffixes(prefix, suffix string) func(string) bool {
	return func(name string) bool {
		return len(name) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
	}
}

func (c *Crawler) modTime(path string) *time.Time {
	info, err := os.Stat(path)
	if err != nil {
		c.fsLog.Error("path does not exist to get its update time", zap.String("path", path), zap.Error(err))
		return nil
	}
	t := info.ModTime()
	return &t
}

// loadJSONSidecar reads a JSON file and returns it compacted. Missing files
// return nil silently; unreadable or malformed ones return nil with a warning.
// Empty documents (null, {}, []) are treated as absent.
func (c *Crawler) loadJSONSidecar(path string) *string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.fsLog.Warn("error reading json sidecar", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		c.fsLog.Warn("malformed json sidecar", zap.String("path", path), zap.Error(err))
		return nil
	}

	switch compact := buf.String(); compact {
	case "", "null", "{}", "[]":
		return nil
	default:
		return &compact
	}
}

// readTextFile returns the trimmed content of path, or nil when it is absent
// or blank.
func (c *Crawler) readTextFile(path string) *string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.fsLog.Warn("error reading file", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}
	return &text
}

// canonicalPath makes path absolute, cleaned and slash separated.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	return filepath.ToSlash(filepath.Clean(abs)), nil
}
