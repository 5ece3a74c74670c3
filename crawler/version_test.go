package crawler

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/camden-git/dopplerindex/logging"
)

func TestVersionExtractor(t *testing.T) {
	tests := []struct {
		name    string
		log     string
		want    string
		matcher string
	}{
		{
			name:    "welcome banner",
			log:     "starting\nWelcome to EyeFlow v2.3.1\nloading",
			want:    "v2.3.1",
			matcher: "welcome",
		},
		{
			name:    "eyeflow version line",
			log:     "EyeFlow version: 1.4.0",
			want:    "1.4.0",
			matcher: "eyeflow-version",
		},
		{
			name:    "version key with suffix",
			log:     "  Version = 2.0.1-beta\n",
			want:    "2.0.1-beta",
			matcher: "version-key",
		},
		{
			name:    "legacy block of one line",
			log:     "=====\nEyeFlow v1.2\n=====",
			want:    "v1.2",
			matcher: "delimiter-block",
		},
		{
			name:    "legacy block of two lines",
			log:     "====\nEyeFlow\n1.3.0\n====",
			want:    "1.3.0",
			matcher: "delimiter-block",
		},
		{
			name:    "legacy block of three lines",
			log:     "====\nEyeFlow\nrelease 1.3.2\n2020-01-01\n====",
			want:    "1.3.2",
			matcher: "delimiter-block",
		},
		{
			name:    "legacy block of four lines",
			log:     "====\nEyeFlow\nDoppler\nv0.9\n12/03/2021\n====",
			want:    "v0.9",
			matcher: "delimiter-block",
		},
		{
			name:    "legacy line without a version token",
			log:     "====\nEyeFlow\nbeta\n====",
			want:    "beta",
			matcher: "delimiter-block",
		},
		{
			name:    "last legacy block wins",
			log:     "====\nheader\n====\nrun\n====\nEyeFlow v3.1\n====",
			want:    "v3.1",
			matcher: "delimiter-block",
		},
		{
			name:    "phrase takes priority over legacy block",
			log:     "====\nEyeFlow v1.0\n====\nWelcome to EyeFlow v2.0",
			want:    "v2.0",
			matcher: "welcome",
		},
	}

	extractor := NewVersionExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matcher, ok := extractor.Extract(splitLines([]byte(tt.log)))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matcher, matcher)
		})
	}
}

func TestVersionExtractorNoMatch(t *testing.T) {
	extractor := NewVersionExtractor()

	for _, log := range []string{
		"",
		"nothing to see here",
		"====\nonly one bar",
		"====\na\nb\nc\nd\ne\n====",
		"====\n====",
	} {
		_, _, ok := extractor.Extract(splitLines([]byte(log)))
		assert.False(t, ok, "%q", log)
	}
}

func TestSplitLinesStripsCarriageReturns(t *testing.T) {
	lines := splitLines([]byte("a\r\nb\r\n"))
	assert.Equal(t, []string{"a", "b", ""}, lines)
}

func observedCrawler(t *testing.T, opts Options) (*Crawler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return New(logging.NewWithCore(core), opts), logs
}

func TestFinalRenderVersionFromLogs(t *testing.T) {
	t.Run("missing log folder", func(t *testing.T) {
		c, logs := observedCrawler(t, DefaultOptions())
		efDir := t.TempDir()

		assert.Nil(t, c.finalRenderVersion(efDir))
		assert.Equal(t, 1, logs.FilterMessage("eyeflow log folder does not exist").Len())
	})

	t.Run("no version anywhere", func(t *testing.T) {
		c, logs := observedCrawler(t, DefaultOptions())
		efDir := t.TempDir()
		writeFile(t, filepath.Join(efDir, "log", "run.txt"), "nothing useful")

		assert.Nil(t, c.finalRenderVersion(efDir))
		assert.Equal(t, 1, logs.FilterMessage("no version announcement found in eyeflow logs").Len())
	})

	t.Run("non log files are ignored", func(t *testing.T) {
		c, _ := observedCrawler(t, DefaultOptions())
		efDir := t.TempDir()
		writeFile(t, filepath.Join(efDir, "log", "dump.csv"), "Welcome to EyeFlow v9.9.9")

		assert.Nil(t, c.finalRenderVersion(efDir))
	})

	t.Run("several logs pick the first match and warn", func(t *testing.T) {
		c, logs := observedCrawler(t, DefaultOptions())
		efDir := t.TempDir()
		writeFile(t, filepath.Join(efDir, "log", "a.txt"), "no version here")
		writeFile(t, filepath.Join(efDir, "log", "b.log"), "EyeFlow Version 1.8.0\r\n")
		writeFile(t, filepath.Join(efDir, "log", "c.txt"), "Welcome to EyeFlow v2.0.0")

		got := c.finalRenderVersion(efDir)
		require.NotNil(t, got)
		assert.Equal(t, "1.8.0", *got)

		warned := logs.FilterMessage("several eyeflow logs found, version taken from the first match").All()
		require.Len(t, warned, 1)
		assert.True(t, strings.HasSuffix(warned[0].ContextMap()["picked"].(string), "b.log"))
		assert.Equal(t, logging.TagFilesystem, warned[0].ContextMap()["category"])
	})
}
