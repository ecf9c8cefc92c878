// Package wordlist loads line-oriented word files used by the text
// cleaner and the admission filter.
package wordlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads one word per line from path. Blank lines are skipped, a
// UTF-8 byte order mark on the first line is stripped, and duplicates
// are removed while preserving first-seen order.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close() //nolint:errcheck

	seen := make(map[string]struct{})
	var words []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		word := strings.TrimSpace(line)
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist %s: %w", path, err)
	}
	return words, nil
}

// LoadAll concatenates the words of several files, deduplicated across
// all of them.
func LoadAll(paths ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var words []string
	for _, path := range paths {
		batch, err := Load(path)
		if err != nil {
			return nil, err
		}
		for _, word := range batch {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
		}
	}
	return words, nil
}
