// Package memory provides in-memory store implementations, used by tests
// and for running the pipeline without external services.
package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/geopop/harvester/internal/harvest"
)

// AccountStore is an in-memory harvest.AccountStore.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]harvest.Account
	order    []string
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]harvest.Account)}
}

// UpsertAccount implements harvest.AccountStore.
func (s *AccountStore) UpsertAccount(_ context.Context, account harvest.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return nil
	}
	s.accounts[account.ID] = account
	s.order = append(s.order, account.ID)
	return nil
}

// AccountExists implements harvest.AccountStore.
func (s *AccountStore) AccountExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[id]
	return ok, nil
}

// RandomAccount implements harvest.AccountStore.
func (s *AccountStore) RandomAccount(_ context.Context) (harvest.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return harvest.Account{}, harvest.ErrNotFound
	}
	id := s.order[rand.IntN(len(s.order))]
	return s.accounts[id], nil
}

// MarkExpanded implements harvest.AccountStore.
func (s *AccountStore) MarkExpanded(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return harvest.ErrNotFound
	}
	account.Expanded = true
	s.accounts[id] = account
	return nil
}

// CountAccounts implements harvest.AccountStore.
func (s *AccountStore) CountAccounts(_ context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expanded int64
	for _, account := range s.accounts {
		if account.Expanded {
			expanded++
		}
	}
	return int64(len(s.accounts)), expanded, nil
}

// Get returns the stored account by ID, for test assertions.
func (s *AccountStore) Get(id string) (harvest.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	return account, ok
}

// PostStore is an in-memory harvest.PostStore with the same dedup key as
// the Postgres table.
type PostStore struct {
	mu    sync.Mutex
	posts map[string]harvest.Post
}

// NewPostStore creates an empty PostStore.
func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[string]harvest.Post)}
}

// InsertPosts implements harvest.PostStore.
func (s *PostStore) InsertPosts(_ context.Context, posts []harvest.Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, post := range posts {
		key := fmt.Sprintf("%s|%d|%s", post.AuthorHandle, post.PostedAt.UnixNano(), post.Text)
		if _, ok := s.posts[key]; ok {
			continue
		}
		s.posts[key] = post
		inserted++
	}
	return inserted, nil
}

// Len returns the number of distinct stored posts.
func (s *PostStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// CoverageStore is an in-memory harvest.CoverageStore.
type CoverageStore struct {
	mu      sync.Mutex
	covered map[string]harvest.DateSet
}

// NewCoverageStore creates an empty CoverageStore.
func NewCoverageStore() *CoverageStore {
	return &CoverageStore{covered: make(map[string]harvest.DateSet)}
}

// LoadCoverage implements harvest.CoverageStore.
func (s *CoverageStore) LoadCoverage(_ context.Context, accountID string) (harvest.DateSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(harvest.DateSet, len(s.covered[accountID]))
	for d := range s.covered[accountID] {
		out[d] = struct{}{}
	}
	return out, nil
}

// RecordCoverage implements harvest.CoverageStore.
func (s *CoverageStore) RecordCoverage(_ context.Context, accountID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.covered[accountID]
	if !ok {
		set = make(harvest.DateSet)
		s.covered[accountID] = set
	}
	set[harvest.DateOf(date)] = struct{}{}
	return nil
}

// CountCovered implements harvest.CoverageStore.
func (s *CoverageStore) CountCovered(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, set := range s.covered {
		n += int64(len(set))
	}
	return n, nil
}

// BlobStore is an in-memory harvest.BlobStore.
type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject implements harvest.BlobStore.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
