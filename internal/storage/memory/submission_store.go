// Package memory provides in-memory store implementations for
// development/testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/navhub/navhub/internal/directory"
)

// SubmissionStore keeps submissions in process memory.
type SubmissionStore struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[int64]directory.Submission
}

// NewSubmissionStore constructs a SubmissionStore.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		nextID: 1,
		subs:   make(map[int64]directory.Submission),
	}
}

// Create stores a new submission and returns its ID.
func (s *SubmissionStore) Create(_ context.Context, sub directory.Submission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.nextID
	s.nextID++
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.subs[sub.ID] = sub
	return sub.ID, nil
}

// ListPending returns pending submissions ordered featured first, then
// oldest first. The sort is stable so equal keys keep insertion order.
func (s *SubmissionStore) ListPending(_ context.Context) ([]directory.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []directory.Submission
	for _, sub := range s.subs {
		if sub.Status == directory.StatusPending {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsFeature != out[j].IsFeature {
			return out[i].IsFeature
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus sets the status for one submission.
func (s *SubmissionStore) UpdateStatus(_ context.Context, id int64, status directory.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return errors.New("submission not found")
	}
	sub.Status = status
	s.subs[id] = sub
	return nil
}

// UpdateStatusByURL sets the status for every submission with a matching URL.
func (s *SubmissionStore) UpdateStatusByURL(_ context.Context, url string, status directory.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for id, sub := range s.subs {
		if sub.URL == url {
			sub.Status = status
			s.subs[id] = sub
			affected++
		}
	}
	return affected, nil
}

// Get fetches a submission by ID (primarily for tests).
func (s *SubmissionStore) Get(_ context.Context, id int64) (directory.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return directory.Submission{}, errors.New("submission not found")
	}
	return sub, nil
}
