package crawler

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	hdMarker       = "_HD_"
	efMarker       = "_EF_"
	eyeflowDirName = "eyeflow"
	versionFile    = "version.txt"

	rawDirName  = "raw"
	jsonDirName = "json"
	pdfDirName  = "pdf"
	h5DirName   = "h5"
	logDirName  = "log"

	inputParamsFile   = "InputEyeFlowParams.json"
	renderParamsInfix = "_RenderingParameters"
	outputExt         = ".h5"
)

var (
	batchFolderPattern = regexp.MustCompile(`^\d{6}`)
	folderDatePattern  = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})`)
)

// IsBatchFolder reports whether name follows the date-coded batch convention
// (six leading digits).
func IsBatchFolder(name string) bool {
	return batchFolderPattern.MatchString(name)
}

// isIntermediateName reports whether a directory looks like an HD render
// output; the acquisition walk never descends into those.
func isIntermediateName(name string) bool {
	return strings.Contains(name, hdMarker)
}

// intermediatePattern matches "{base}_HD_{N}".
func intermediatePattern(acquisitionBase string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(acquisitionBase) + hdMarker + `(\d+)$`)
}

// finalPattern matches "{intermediateName}_EF_{N}".
func finalPattern(intermediateName string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(intermediateName) + efMarker + `(\d+)$`)
}

// previewName is the preview video convention: R_{base}_p{ext}.
func previewName(acquisitionBase, ext string) string {
	return "R_" + acquisitionBase + "_p" + ext
}

// stem strips the final extension from a file name.
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ParseSequence returns the render number encoded as the last "_" separated
// segment of name ("SAMPLE01_HD_3" → 3). It returns nil when that segment is
// not a non-negative decimal integer.
func ParseSequence(name string) *int {
	idx := strings.LastIndex(name, "_")
	if idx < 0 || idx == len(name)-1 {
		return nil
	}
	suffix := name[idx+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return nil
	}
	return &n
}

// MeasureTag is the second "_" separated segment of the file stem
// ("250101_ABC_run1.holo" → "ABC"), or nil when there is none.
func MeasureTag(path string) *string {
	parts := strings.Split(stem(filepath.Base(path)), "_")
	if len(parts) < 2 || parts[1] == "" {
		return nil
	}
	tag := parts[1]
	return &tag
}

// ParseFolderDate decodes a leading YYMMDD date code. Calendar-invalid codes
// such as "991399" are rejected.
func ParseFolderDate(name string) (time.Time, bool) {
	m := folderDatePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	yy, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	dd, _ := strconv.Atoi(m[3])

	date := time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if date.Year() != 2000+yy || int(date.Month()) != mm || date.Day() != dd {
		return time.Time{}, false
	}
	return date, true
}
