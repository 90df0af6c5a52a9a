package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrChainBroken is returned when an audit log entry does not match its
// recorded hash or does not follow the previous entry.
var ErrChainBroken = errors.New("audit chain broken")

// CalculateHash is a deterministic SHA256 over PrevHash, identity,
// timestamp, actor and metadata. Hash itself is excluded.
func (e *BaseEvent) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.AggregateID_))
	h.Write([]byte(e.FamilyID))
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(e.Actor))
	h.Write([]byte(canonicalJSON(e.Metadata)))
	return hex.EncodeToString(h.Sum(nil))
}

// Chain returns a copy of e linked after prevHash.
func (e *BaseEvent) Chain(prevHash string) *BaseEvent {
	out := *e
	out.PrevHash = prevHash
	out.Hash = out.CalculateHash()
	return &out
}

// canonicalJSON renders metadata with sorted keys.
func canonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(m[k])
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')
	return string(ordered)
}

// VerifyChain checks that every entry hashes to its recorded Hash and links
// to its predecessor. Entries written before chaining (no Hash) must all
// precede the first chained one.
func VerifyChain(log []*BaseEvent) error {
	prev := ""
	chained := false
	for i, e := range log {
		if e.Hash == "" {
			if chained {
				return fmt.Errorf("%w: entry %d (%s) has no hash", ErrChainBroken, i+1, e.ID)
			}
			continue
		}
		if chained && e.PrevHash != prev {
			return fmt.Errorf("%w: entry %d (%s) does not follow entry %d", ErrChainBroken, i+1, e.ID, i)
		}
		if e.CalculateHash() != e.Hash {
			return fmt.Errorf("%w: entry %d (%s) was modified", ErrChainBroken, i+1, e.ID)
		}
		prev, chained = e.Hash, true
	}
	return nil
}
