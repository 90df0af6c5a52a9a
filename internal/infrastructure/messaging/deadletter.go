package messaging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// DeadLetter records a delivery that failed every attempt.
type DeadLetter struct {
	Timestamp time.Time `json:"timestamp"`
	Adapter   string    `json:"adapter"`
	Type      string    `json:"type"`
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
}

// DeadLetterStore appends dead letters to a JSONL file.
type DeadLetterStore struct {
	path string
	mu   sync.Mutex
}

func NewDeadLetterStore(path string) *DeadLetterStore {
	return &DeadLetterStore{path: path}
}

func (s *DeadLetterStore) Append(dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open dead letter file: %w", err)
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// ReadAll returns every readable entry; malformed lines are skipped.
func (s *DeadLetterStore) ReadAll() ([]DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []DeadLetter
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var dl DeadLetter
		if err := json.Unmarshal(sc.Bytes(), &dl); err != nil {
			continue
		}
		entries = append(entries, dl)
	}
	return entries, sc.Err()
}
