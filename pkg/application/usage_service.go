package application

import (
	"sync"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/ai"
)

// UsageStore persists token usage, normally the workspace usage.json.
type UsageStore interface {
	LoadUsage() (*ai.UsageStats, error)
	SaveUsage(stats ai.UsageStats) error
}

// UsageService tracks generator token usage.
type UsageService struct {
	store UsageStore
	now   func() time.Time
	mu    sync.Mutex
}

func NewUsageService(store UsageStore) *UsageService {
	return &UsageService{store: store, now: time.Now}
}

// RecordUsage adds one completion's tokens.
func (s *UsageService) RecordUsage(providerID string, usage ai.TokenUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, err := s.load()
	if err != nil {
		return err
	}
	stats.Record(providerID, usage, s.now())
	return s.store.SaveUsage(*stats)
}

// GetUsage returns current statistics, empty when none were recorded.
func (s *UsageService) GetUsage() (*ai.UsageStats, error) {
	return s.load()
}

func (s *UsageService) load() (*ai.UsageStats, error) {
	stats, err := s.store.LoadUsage()
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &ai.UsageStats{}
	}
	if stats.ProviderStats == nil {
		stats.ProviderStats = make(map[string]int)
	}
	return stats, nil
}
