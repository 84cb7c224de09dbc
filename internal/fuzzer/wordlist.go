package fuzzer

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed default_wordlist.txt
var defaultWordlist []byte

// LoadWordlist reads a wordlist file, skipping blank lines and #-comments.
// An empty path loads the embedded default list.
func LoadWordlist(path string) ([]string, error) {
	if path == "" {
		return parseWordlist(bytes.NewReader(defaultWordlist))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer f.Close()

	words, err := parseWordlist(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read wordlist: %w", err)
	}
	return words, nil
}

func parseWordlist(r io.Reader) ([]string, error) {
	var words []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		word = strings.Trim(word, "/")
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words, scanner.Err()
}
