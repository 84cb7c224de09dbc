// Package fuzzer generates candidate hidden paths from a wordlist.
//
// Candidates funnel through the same frontier and fetcher as linked
// pages, so fuzzing cannot bypass politeness limits.
package fuzzer

import (
	"net/http"
	"strings"
	"sync"
)

// Fuzzer combines a wordlist with discovered directory URLs.
type Fuzzer struct {
	words      []string
	extensions []string

	mu     sync.Mutex
	fuzzed map[string]struct{} // directories already expanded
}

// New creates a fuzzer over the given words and file extensions. The bare
// word is always emitted; each extension adds a word+ext variant.
func New(words, extensions []string) *Fuzzer {
	return &Fuzzer{
		words:      words,
		extensions: extensions,
		fuzzed:     make(map[string]struct{}),
	}
}

// Candidates yields candidate URLs under the given directory-level URL.
// A directory is expanded at most once per session; subsequent calls for
// the same directory return nil.
func (f *Fuzzer) Candidates(dirURL string) []string {
	dirURL = strings.TrimSuffix(dirURL, "/")
	if dirURL == "" {
		return nil
	}

	f.mu.Lock()
	if _, done := f.fuzzed[dirURL]; done {
		f.mu.Unlock()
		return nil
	}
	f.fuzzed[dirURL] = struct{}{}
	f.mu.Unlock()

	candidates := make([]string, 0, len(f.words)*(1+len(f.extensions)))
	seen := make(map[string]struct{})
	add := func(c string) {
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, word := range f.words {
		add(dirURL + "/" + word)
		for _, ext := range f.extensions {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			add(dirURL + "/" + word + ext)
		}
	}
	return candidates
}

// Confirmed reports whether a fuzz-generated fetch counts as a discovery:
// anything but 404 and 403. Confirmed paths are eligible to seed further
// extraction and fuzzing at the next depth.
func Confirmed(statusCode int) bool {
	return statusCode != http.StatusNotFound && statusCode != http.StatusForbidden
}
