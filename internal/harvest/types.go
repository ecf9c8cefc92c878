// Package harvest defines core types shared across subsystems.
package harvest

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Account is a tracked social-media account admitted into the population.
// Expanded flips to true exactly once, after its social neighborhood has
// been fetched and persisted; it never flips back.
type Account struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	Followers    int64     `json:"followers"`
	Following    int64     `json:"following"`
	Protected    bool      `json:"protected"`
	Location     string    `json:"location"`
	Lang         string    `json:"lang"`
	Expanded     bool      `json:"expanded"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Candidate is an unvalidated account fetched from another account's
// neighborhood. It only exists within one ingestion pass; admission turns
// it into an Account.
type Candidate struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Followers int64  `json:"followers"`
	Following int64  `json:"following"`
	Protected bool   `json:"protected"`
	Location  string `json:"location"`
	Lang      string `json:"lang"`
}

// Account converts an admitted candidate into a tracked account.
func (c Candidate) Account(discoveredAt time.Time) Account {
	return Account{
		ID:           c.ID,
		Handle:       c.Handle,
		Followers:    c.Followers,
		Following:    c.Following,
		Protected:    c.Protected,
		Location:     c.Location,
		Lang:         c.Lang,
		Expanded:     false,
		DiscoveredAt: discoveredAt,
	}
}

// RawPost is a post exactly as returned by the upstream platform.
type RawPost struct {
	AuthorHandle string    `json:"author_handle"`
	PostedAt     time.Time `json:"posted_at"`
	Text         string    `json:"text"`
}

// Post is a normalized post ready for persistence. Rows are deduplicated
// at the store level on (AuthorHandle, PostedAt, Text).
type Post struct {
	AuthorHandle string    `json:"author_handle"`
	PostedAt     time.Time `json:"posted_at"`
	Text         string    `json:"text"`
}

// DayWindow is a single-day work unit [Date, Date+1) in the timeline
// domain. Date is always a midnight-UTC calendar date (see DateOf).
type DayWindow struct {
	Date time.Time
}

// Start returns the inclusive lower bound of the window.
func (w DayWindow) Start() time.Time { return w.Date }

// End returns the exclusive upper bound of the window.
func (w DayWindow) End() time.Time { return w.Date.AddDate(0, 0, 1) }

// DateSet is a set of calendar dates (midnight UTC), the coverage record
// for one account in the timeline domain. It only ever grows.
type DateSet map[time.Time]struct{}

// Contains reports membership after normalizing t to a calendar date.
func (s DateSet) Contains(t time.Time) bool {
	_, ok := s[DateOf(t)]
	return ok
}

// DateOf truncates t to its calendar date at midnight UTC. All date
// comparisons in the frontier and coverage layers go through this so that
// times from different sources compare equal on the same day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
