// Package detect decides which search engine produced a result file.
package detect

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/ChrisMcGann/phrp/pkg/core"
	"github.com/ChrisMcGann/phrp/pkg/reader/engine"
)

// Rule names the detection step that classified a file.
type Rule string

const (
	RuleNone   Rule = ""
	RuleSuffix Rule = "suffix"
	RuleHeader Rule = "header"
	// FallbackTSVAsMSGFPlus treats a tab-delimited .tsv file without any
	// engine header token as MS-GF+ output. This is a heuristic.
	FallbackTSVAsMSGFPlus Rule = "fallback-tsv-msgfplus"
)

// sniffLines is how many lines are inspected when looking for a header
const sniffLines = 50

// DefaultCacheSize is the number of paths remembered by a Detector
const DefaultCacheSize = 256

// Result is the outcome of classifying one file.
type Result struct {
	Type engine.ResultType
	Rule Rule
}

// Fallback reports whether the result came from the .tsv heuristic.
func (r Result) Fallback() bool {
	return r.Rule == FallbackTSVAsMSGFPlus
}

// Detector classifies result files and remembers the answer per path.
type Detector struct {
	cache *lru.Cache[string, Result]
}

// NewDetector creates a detector remembering up to size paths.
func NewDetector(size int) (*Detector, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Result](size)
	if err != nil {
		return nil, err
	}
	return &Detector{cache: cache}, nil
}

// DetectFile classifies a file on disk, opening it only when the name is
// not conclusive.
func (d *Detector) DetectFile(path string) (Result, error) {
	if res, ok := d.cache.Get(path); ok {
		return res, nil
	}

	res, err := Detect(path, func() (io.ReadCloser, error) { return os.Open(path) })
	if err != nil {
		return res, err
	}
	d.cache.Add(path, res)
	return res, nil
}

// Detect classifies name using the suffix table, then header tokens, then the
// .tsv fallback. open is called at most once, and only when content is needed.
// An unclassifiable file yields Unknown with ErrFormatUndetermined.
func Detect(name string, open func() (io.ReadCloser, error)) (Result, error) {
	base := strings.ToLower(filepath.Base(name))

	var header []string
	var head string
	loaded := false
	load := func() {
		if loaded || open == nil {
			return
		}
		loaded = true
		rc, err := open()
		if err != nil {
			return
		}
		defer rc.Close()
		head, header = sniff(rc)
	}

	for _, s := range engine.Schemas() {
		if !hasSuffix(base, s.Suffixes) {
			continue
		}
		if !s.NeedsHeader {
			return Result{Type: s.Type, Rule: RuleSuffix}, nil
		}
		load()
		if matchesContent(s, head, header) {
			return Result{Type: s.Type, Rule: RuleSuffix}, nil
		}
	}

	load()
	for _, s := range engine.Schemas() {
		if matchesContent(s, head, header) {
			return Result{Type: s.Type, Rule: RuleHeader}, nil
		}
	}

	if strings.HasSuffix(base, ".tsv") && len(header) > 1 {
		return Result{Type: engine.MSGFPlus, Rule: FallbackTSVAsMSGFPlus}, nil
	}

	return Result{Type: engine.Unknown}, fmt.Errorf("%w: %s", core.ErrFormatUndetermined, name)
}

// hasSuffix also accepts a suffix that is the whole base name (msms.txt).
func hasSuffix(base string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(base, suf) {
			return true
		}
	}
	return false
}

func matchesContent(s *engine.Schema, head string, header []string) bool {
	if s.XML {
		for _, set := range s.HeaderTokens {
			for _, tok := range set {
				if strings.Contains(head, tok) {
					return true
				}
			}
		}
		return false
	}
	return header != nil && s.MatchesHeader(header)
}

// sniff returns the first lines of the stream as text along with the first
// header line that matches any engine, or else the first tab-delimited line.
func sniff(r io.Reader) (string, []string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var head strings.Builder
	var first []string
	for n := 0; n < sniffLines && scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		head.WriteString(line)
		head.WriteByte('\n')
		if !strings.Contains(line, "\t") {
			continue
		}
		cols := strings.Split(line, "\t")
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		if first == nil {
			first = cols
		}
		for _, s := range engine.Schemas() {
			if !s.XML && s.MatchesHeader(cols) {
				return head.String(), cols
			}
		}
	}
	return head.String(), first
}
