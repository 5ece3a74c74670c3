// Package crawler turns one date-coded batch folder into catalog records. It
// only ever reads the filesystem.
package crawler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/logging"
)

// ErrNotBatchFolder is returned by Crawl for folders that do not follow the
// batch naming convention. Callers treat it as a skip, not a failure.
var ErrNotBatchFolder = errors.New("not a batch folder")

// Options controls what the crawler looks for.
type Options struct {
	AcquisitionExt  string
	PreviewExts     []string
	LoadInputParams bool
}

// DefaultOptions matches the acquisition software's conventions.
func DefaultOptions() Options {
	return Options{
		AcquisitionExt: ".holo",
		PreviewExts:    []string{".avi", ".mp4"},
	}
}

type Crawler struct {
	Log  *logging.Logger
	Opts Options

	fsLog    *logging.Logger
	versions VersionExtractor
}

func New(log *logging.Logger, opts Options) *Crawler {
	if opts.AcquisitionExt == "" {
		opts.AcquisitionExt = DefaultOptions().AcquisitionExt
	}
	opts.PreviewExts = uniqueFold(opts.PreviewExts)

	return &Crawler{
		Log:      log.Tag(logging.TagScan),
		Opts:     opts,
		fsLog:    log.Tag(logging.TagFilesystem),
		versions: NewVersionExtractor(),
	}
}

func uniqueFold(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// Crawl collects every acquisition beneath batchDir along with its preview
// videos, HD renders and EF renders. Unreadable subtrees are logged and
// skipped; the only errors are a non-batch name or an unusable batchDir.
func (c *Crawler) Crawl(batchDir string) (*catalog.Batch, error) {
	if !IsBatchFolder(filepath.Base(batchDir)) {
		return nil, fmt.Errorf("%w: %s", ErrNotBatchFolder, batchDir)
	}

	root, err := canonicalPath(batchDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat batch folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("batch folder %s is not a directory", root)
	}

	batch := &catalog.Batch{Folders: []string{root}}
	seenHD := make(map[string]bool)

	var files []string
	c.walkAcquisitions(root, &files)
	for _, file := range files {
		c.addAcquisition(batch, root, file, seenHD)
	}

	counts := batch.Counts()
	c.Log.Debug("batch folder crawled",
		zap.String("path", root),
		zap.Int("acquisitions", counts.Acquisitions),
		zap.Int("previews", counts.Previews),
		zap.Int("intermediates", counts.Intermediates),
		zap.Int("finals", counts.Finals),
	)
	return batch, nil
}

// walkAcquisitions collects acquisition files depth first in natural order,
// never descending into HD render folders. Symlinked directories are not
// followed.
func (c *Crawler) walkAcquisitions(dir string, out *[]string) {
	for _, entry := range c.safeReadDir(dir) {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if isIntermediateName(entry.Name()) {
				continue
			}
			c.walkAcquisitions(path, out)
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), c.Opts.AcquisitionExt) {
			*out = append(*out, path)
		}
	}
}

func (c *Crawler) addAcquisition(batch *catalog.Batch, batchRoot, file string, seenHD map[string]bool) {
	dir := filepath.Dir(file)
	base := stem(filepath.Base(file))

	ref := batch.AddAcquisition(catalog.Acquisition{
		Path:      filepath.ToSlash(file),
		Tag:       MeasureTag(file),
		CreatedAt: c.createdAt(file, batchRoot),
	})

	for _, ext := range c.Opts.PreviewExts {
		preview := filepath.Join(dir, previewName(base, ext))
		if isRegularFile(preview) {
			batch.AddPreview(catalog.PreviewAsset{Acquisition: ref, Path: filepath.ToSlash(preview)})
		}
	}

	hdPattern := intermediatePattern(base)
	for _, entry := range c.safeReadDir(dir) {
		if !entry.IsDir() || !hdPattern.MatchString(entry.Name()) {
			continue
		}
		hdDir := filepath.Join(dir, entry.Name())
		if seenHD[hdDir] {
			c.Log.Warn("render folder claimed by several acquisitions, keeping the first",
				zap.String("path", hdDir), zap.String("acquisition", file))
			continue
		}
		seenHD[hdDir] = true

		hdRef := batch.AddIntermediate(c.intermediateRender(ref, hdDir))
		c.addFinalRenders(batch, hdRef, hdDir)
	}
}

// createdAt prefers the date coded in the file name, then the batch folder
// name, then the file's modification time.
func (c *Crawler) createdAt(file, batchRoot string) time.Time {
	if date, ok := ParseFolderDate(filepath.Base(file)); ok {
		return date
	}
	if date, ok := ParseFolderDate(filepath.Base(batchRoot)); ok {
		return date
	}
	if mtime := c.modTime(file); mtime != nil {
		c.fsLog.Warn("no date code found, using modification time", zap.String("path", file))
		return *mtime
	}
	return time.Time{}
}

func (c *Crawler) intermediateRender(acq catalog.AcquisitionRef, hdDir string) catalog.IntermediateRender {
	name := filepath.Base(hdDir)
	render := catalog.IntermediateRender{
		Acquisition: acq,
		Path:        filepath.ToSlash(hdDir),
		SequenceNo:  ParseSequence(name),
		Version:     c.readTextFile(filepath.Join(hdDir, versionFile)),
		UpdatedAt:   c.modTime(hdDir),
	}

	if params := c.firstFile(hdDir, hasAffixes(name+renderParamsInfix, ".json")); params != nil {
		render.ParamsJSON = c.loadJSONSidecar(*params)
	} else {
		c.fsLog.Debug("no rendering parameters found", zap.String("path", hdDir))
	}

	render.RawOutputPath = c.firstFile(filepath.Join(hdDir, rawDirName), hasExt(outputExt))
	return render
}

func (c *Crawler) addFinalRenders(batch *catalog.Batch, hd catalog.IntermediateRef, hdDir string) {
	eyeflowDir := filepath.Join(hdDir, eyeflowDirName)
	if !c.isDir(eyeflowDir) {
		return
	}

	efPattern := finalPattern(filepath.Base(hdDir))
	for _, entry := range c.safeReadDir(eyeflowDir) {
		if !entry.IsDir() || !efPattern.MatchString(entry.Name()) {
			continue
		}
		batch.AddFinal(c.finalRender(hd, filepath.Join(eyeflowDir, entry.Name())))
	}
}

func (c *Crawler) finalRender(hd catalog.IntermediateRef, efDir string) catalog.FinalRender {
	render := catalog.FinalRender{
		Intermediate: hd,
		Path:         filepath.ToSlash(efDir),
		SequenceNo:   ParseSequence(filepath.Base(efDir)),
		ReportPath:   c.firstFile(filepath.Join(efDir, pdfDirName), anyName),
		OutputPath:   c.firstFile(filepath.Join(efDir, h5DirName), hasExt(outputExt)),
		Version:      c.finalRenderVersion(efDir),
		UpdatedAt:    c.modTime(efDir),
	}
	if c.Opts.LoadInputParams {
		render.InputParamsJSON = c.loadJSONSidecar(filepath.Join(efDir, jsonDirName, inputParamsFile))
	}
	return render
}
