package calendar

import (
	"sync"

	"github.com/digitalnextlvl/agenda/internal/store"
)

// Service hands out one aggregator per user so all of a user's requests share
// the same snapshot and mutation serialization.
type Service struct {
	events   store.EventRepository
	provider Provider

	mu   sync.Mutex
	aggs map[int64]*Aggregator
}

func NewService(events store.EventRepository, provider Provider) *Service {
	return &Service{
		events:   events,
		provider: provider,
		aggs:     make(map[int64]*Aggregator),
	}
}

// ForUser returns the user's aggregator, creating it on first use.
func (s *Service) ForUser(userID int64) *Aggregator {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.aggs[userID]
	if !ok {
		agg = NewAggregator(userID, s.events, s.provider)
		s.aggs[userID] = agg
	}
	return agg
}
