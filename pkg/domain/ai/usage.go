package ai

import "time"

// UsageStats accumulates generator token counts keyed by "<provider:model>:input|output".
type UsageStats struct {
	Generations      int            `json:"generations"`
	LastGenerationAt time.Time      `json:"last_generation_at"`
	ProviderStats    map[string]int `json:"provider_stats"`
}

// Record adds one generation's token usage for the given provider ID.
func (u *UsageStats) Record(providerID string, usage TokenUsage, at time.Time) {
	if u.ProviderStats == nil {
		u.ProviderStats = make(map[string]int)
	}
	u.Generations++
	u.LastGenerationAt = at
	if usage.InputTokens > 0 {
		u.ProviderStats[providerID+":input"] += usage.InputTokens
	}
	if usage.OutputTokens > 0 {
		u.ProviderStats[providerID+":output"] += usage.OutputTokens
	}
}

// TotalTokens sums every counter.
func (u *UsageStats) TotalTokens() int {
	total := 0
	for _, n := range u.ProviderStats {
		total += n
	}
	return total
}
