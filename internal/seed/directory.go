// Package seed bootstraps the account population from a public
// directory page of handles.
package seed

import (
	"fmt"
	"strings"

	"github.com/gocolly/colly/v2"
)

// DirectoryScraper pulls candidate handles out of an HTML directory
// listing. The directory renders its entries in table cells under the
// #listado element; cells holding a handle start with "@".
type DirectoryScraper struct {
	userAgent string
}

// NewDirectoryScraper builds a scraper with the given User-Agent.
func NewDirectoryScraper(userAgent string) *DirectoryScraper {
	return &DirectoryScraper{userAgent: userAgent}
}

// Handles visits the directory page and returns the unique handles
// found, in document order and without the leading "@".
func (s *DirectoryScraper) Handles(pageURL string) ([]string, error) {
	opts := []colly.CollectorOption{}
	if s.userAgent != "" {
		opts = append(opts, colly.UserAgent(s.userAgent))
	}
	collector := colly.NewCollector(opts...)

	seen := make(map[string]struct{})
	var handles []string
	collector.OnHTML("#listado td", func(e *colly.HTMLElement) {
		text := strings.TrimSpace(e.Text)
		if !strings.HasPrefix(text, "@") {
			return
		}
		handle := strings.TrimPrefix(text, "@")
		if handle == "" {
			return
		}
		if _, ok := seen[handle]; ok {
			return
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	})

	var visitErr error
	collector.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("visit directory %s: %w", pageURL, err)
	}
	collector.Wait()
	if visitErr != nil {
		return nil, fmt.Errorf("scrape directory %s: %w", pageURL, visitErr)
	}
	return handles, nil
}
