package metastore

import (
	"context"
	"sync"
	"time"

	"github.com/xhad/scholar/internal/models"
)

// MemoryStore is an in-memory PaperStore for local runs and tests. It applies
// the same lifecycle rules as the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	papers map[string]models.Paper
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{papers: make(map[string]models.Paper)}
}

func key(ownerID, documentID string) string {
	return ownerID + "/" + documentID
}

func (s *MemoryStore) CreatePaper(_ context.Context, paper models.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if paper.Status == "" {
		paper.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = now
	}
	paper.UpdatedAt = now

	s.papers[key(paper.OwnerID, paper.ID)] = paper
	return nil
}

func (s *MemoryStore) GetPaper(_ context.Context, ownerID, documentID string) (models.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paper, ok := s.papers[key(ownerID, documentID)]
	if !ok {
		return models.Paper{}, ErrNotFound
	}
	return paper, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, ownerID, documentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paper, ok := s.papers[key(ownerID, documentID)]
	if !ok {
		return ErrNotFound
	}
	if paper.Status == models.StatusCompleted || paper.Status == models.StatusFailed {
		return ErrTerminalState
	}

	paper.Status = status
	paper.UpdatedAt = time.Now().UTC()
	s.papers[key(ownerID, documentID)] = paper
	return nil
}

func (s *MemoryStore) UpdateMetadata(_ context.Context, ownerID, documentID string, update models.PaperUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paper, ok := s.papers[key(ownerID, documentID)]
	if !ok {
		return ErrNotFound
	}

	if update.Title != nil {
		paper.Title = *update.Title
	}
	if update.Authors != nil {
		paper.Authors = *update.Authors
	}
	if update.Abstract != nil {
		paper.Abstract = *update.Abstract
	}
	if update.PageCount != nil {
		paper.PageCount = *update.PageCount
	}
	if update.Year != nil {
		paper.Year = *update.Year
	}
	if update.Venue != nil {
		paper.Venue = *update.Venue
	}
	if update.DOI != nil {
		paper.DOI = *update.DOI
	}
	if update.CitationCount != nil {
		paper.CitationCount = *update.CitationCount
	}
	paper.UpdatedAt = time.Now().UTC()

	s.papers[key(ownerID, documentID)] = paper
	return nil
}
