package app

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"adaptive-quiz/internal/domain"
)

// StatsKey scopes the base stats key to a user. An empty userID keeps the base key.
func StatsKey(base, userID string) string {
	if base == "" {
		base = DefaultStatsKey
	}
	if userID == "" {
		return base
	}
	return base + ":" + userID
}

// loadStats never fails: a missing store, a missing key, a backend error or
// malformed JSON all yield an empty map.
func loadStats(ctx context.Context, kv KeyValueStore, key string) domain.StatsMap {
	if kv == nil {
		return domain.StatsMap{}
	}
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		log.Printf("load stats %q: %v", key, err)
		return domain.StatsMap{}
	}
	if !ok || raw == "" {
		return domain.StatsMap{}
	}
	var stats domain.StatsMap
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		log.Printf("discarding malformed stats %q: %v", key, err)
		return domain.StatsMap{}
	}
	if stats == nil {
		return domain.StatsMap{}
	}
	return stats
}

func saveStats(ctx context.Context, kv KeyValueStore, key string, stats domain.StatsMap) {
	if kv == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		log.Printf("encode stats %q: %v", key, err)
		return
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		log.Printf("save stats %q: %v", key, err)
	}
}

func deleteStats(ctx context.Context, kv KeyValueStore, key string) {
	if kv == nil {
		return
	}
	if err := kv.Delete(ctx, key); err != nil {
		log.Printf("clear stats %q: %v", key, err)
	}
}

// clearGen serializes stats writes of one key with clears of that key. Stores
// remember the generation they last saw and drop their in-memory map when it moves.
type clearGen struct {
	mu  sync.Mutex
	gen uint64
}

// clear deletes the persisted stats and returns the new generation.
func (g *clearGen) clear(ctx context.Context, kv KeyValueStore, key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	deleteStats(ctx, kv, key)
	g.gen++
	return g.gen
}
