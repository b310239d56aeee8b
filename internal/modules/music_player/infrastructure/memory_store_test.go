package infrastructure

import (
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
)

func TestMemoryGuildStateStore_Get(t *testing.T) {
	store := NewMemoryGuildStateStore()
	guildID := snowflake.ID(123)

	// Get should return nil if state doesn't exist
	if state := store.Get(guildID); state != nil {
		t.Fatal("expected nil for non-existent state")
	}

	created := store.GetOrCreate(guildID)
	if created == nil {
		t.Fatal("expected state from GetOrCreate")
	}
	if created.GuildID() != guildID {
		t.Errorf("expected guild %d, got %d", guildID, created.GuildID())
	}

	if state := store.Get(guildID); state != created {
		t.Error("expected same state instance")
	}

	// Different guild should return nil
	if state := store.Get(snowflake.ID(456)); state != nil {
		t.Error("expected nil for different guild")
	}
}

func TestMemoryGuildStateStore_GetOrCreate(t *testing.T) {
	store := NewMemoryGuildStateStore()
	guildID := snowflake.ID(123)

	first := store.GetOrCreate(guildID)
	first.Lock()
	first.SetVoiceChannelID(100)
	first.Unlock()

	second := store.GetOrCreate(guildID)
	if second != first {
		t.Error("expected same state instance")
	}
	if got := second.Snapshot().VoiceChannelID; got != 100 {
		t.Errorf("expected voice channel 100, got %d", got)
	}
}

func TestMemoryGuildStateStore_GuildIDs(t *testing.T) {
	store := NewMemoryGuildStateStore()
	store.GetOrCreate(1)
	store.GetOrCreate(2)
	store.GetOrCreate(2)

	ids := store.GuildIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 guilds, got %d", len(ids))
	}
	seen := map[snowflake.ID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("unexpected guild IDs %v", ids)
	}
	if store.Count() != 2 {
		t.Errorf("expected count 2, got %d", store.Count())
	}
}

func TestMemoryGuildStateStore_Concurrency(t *testing.T) {
	store := NewMemoryGuildStateStore()

	var wg sync.WaitGroup
	results := make([]any, 100)
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half the goroutines race on the same guild
			guildID := snowflake.ID(i % 2)
			results[i] = store.GetOrCreate(guildID)
			_ = store.Get(guildID)
			_ = store.GuildIDs()
		}(i)
	}
	wg.Wait()

	for i := 2; i < len(results); i++ {
		if results[i] != results[i%2] {
			t.Fatalf("goroutine %d got a different state instance", i)
		}
	}
	if store.Count() != 2 {
		t.Errorf("expected count 2, got %d", store.Count())
	}
}
