package crawler

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// VersionMatcher recognises one historical way a renderer announced its
// version in a log file.
type VersionMatcher interface {
	Name() string
	Match(lines []string) (string, bool)
}

var versionToken = regexp.MustCompile(`v?\d+(?:\.\d+)+`)

// phraseMatcher returns the first capture group of the first matching line.
type phraseMatcher struct {
	name string
	re   *regexp.Regexp
}

func (m phraseMatcher) Name() string { return m.name }

func (m phraseMatcher) Match(lines []string) (string, bool) {
	for _, line := range lines {
		if sub := m.re.FindStringSubmatch(line); sub != nil {
			return sub[1], true
		}
	}
	return "", false
}

// delimiterBlockMatcher handles the legacy layout where a block of one to four
// lines sits between two lines made only of '='. The last such block in the
// file wins, and its line count selects which line carries the version.
type delimiterBlockMatcher struct{}

func (delimiterBlockMatcher) Name() string { return "delimiter-block" }

// versionLineByBlockSize maps block length to the index of the version line.
var versionLineByBlockSize = map[int]int{
	1: 0, // "EyeFlow v1.0"
	2: 1, // title, version
	3: 1, // title, version, date
	4: 2, // title, subtitle, version, date
}

func isBarLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Trim(trimmed, "=") == ""
}

func (delimiterBlockMatcher) Match(lines []string) (string, bool) {
	var bars []int
	for i, line := range lines {
		if isBarLine(line) {
			bars = append(bars, i)
		}
	}
	if len(bars) < 2 {
		return "", false
	}
	start, end := bars[len(bars)-2], bars[len(bars)-1]

	var block []string
	for _, line := range lines[start+1 : end] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			block = append(block, trimmed)
		}
	}
	idx, ok := versionLineByBlockSize[len(block)]
	if !ok {
		return "", false
	}
	line := block[idx]
	if token := versionToken.FindString(line); token != "" {
		return token, true
	}
	return line, true
}

// DefaultVersionMatchers lists the known announcement formats, newest first.
func DefaultVersionMatchers() []VersionMatcher {
	return []VersionMatcher{
		phraseMatcher{name: "welcome", re: regexp.MustCompile(`Welcome to EyeFlow\s+(v?\d+(?:\.\d+)+\S*)`)},
		phraseMatcher{name: "eyeflow-version", re: regexp.MustCompile(`EyeFlow [Vv]ersion\s*[:=]?\s*(v?\d+(?:\.\d+)+\S*)`)},
		phraseMatcher{name: "version-key", re: regexp.MustCompile(`^\s*[Vv]ersion\s*[:=]\s*(v?\d+(?:\.\d+)+\S*)`)},
		delimiterBlockMatcher{},
	}
}

// VersionExtractor tries its matchers in order; the first hit wins.
type VersionExtractor struct {
	Matchers []VersionMatcher
}

func NewVersionExtractor() VersionExtractor {
	return VersionExtractor{Matchers: DefaultVersionMatchers()}
}

// Extract returns the version and the name of the matcher that found it.
func (e VersionExtractor) Extract(lines []string) (version, matcher string, ok bool) {
	for _, m := range e.Matchers {
		if v, found := m.Match(lines); found {
			return v, m.Name(), true
		}
	}
	return "", "", false
}

func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func isLogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".log"
}

// finalRenderVersion scans the log folder of an EF render. With several log
// files the first one yielding a version is used and a warning is emitted,
// since nothing orders the runs they describe.
func (c *Crawler) finalRenderVersion(finalDir string) *string {
	logDir := filepath.Join(finalDir, logDirName)
	if !c.isDir(logDir) {
		c.fsLog.Warn("eyeflow log folder does not exist", zap.String("path", logDir))
		return nil
	}

	var logs []string
	for _, entry := range c.safeReadDir(logDir) {
		if !entry.IsDir() && isLogFile(entry.Name()) {
			logs = append(logs, filepath.Join(logDir, entry.Name()))
		}
	}
	if len(logs) == 0 {
		c.fsLog.Warn("eyeflow log folder holds no log file", zap.String("path", logDir))
		return nil
	}

	for _, logPath := range logs {
		data, err := os.ReadFile(logPath)
		if err != nil {
			c.fsLog.Warn("error reading eyeflow log", zap.String("path", logPath), zap.Error(err))
			continue
		}
		version, matcher, ok := c.versions.Extract(splitLines(data))
		if !ok {
			continue
		}
		if len(logs) > 1 {
			c.fsLog.Warn("several eyeflow logs found, version taken from the first match",
				zap.String("path", logDir), zap.String("picked", logPath), zap.Int("log_files", len(logs)))
		}
		c.fsLog.Debug("eyeflow version found", zap.String("path", logPath), zap.String("matcher", matcher), zap.String("version", version))
		return &version
	}

	c.fsLog.Warn("no version announcement found in eyeflow logs", zap.String("path", logDir))
	return nil
}
