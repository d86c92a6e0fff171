// ABOUTME: Tests for the user preference store
// ABOUTME: Covers defaults, history bounding, recommendation scoring, and migration

package prefs

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/lore-console/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.MemoryStore) {
	t.Helper()

	kv := storage.NewMemoryStore()
	return NewStore(kv), kv
}

func TestGet_Defaults(t *testing.T) {
	s, _ := newTestStore(t)

	prefs := s.Get()
	assert.Empty(t, prefs.PreferredMethod)
	assert.False(t, prefs.RememberMethod)
	assert.True(t, prefs.ShowMethodSelection)
	assert.Equal(t, "auto", prefs.Theme)
	assert.Equal(t, "en", prefs.Language)
}

func TestUpdateAndGet(t *testing.T) {
	s, _ := newTestStore(t)

	prefs := s.Get()
	prefs.PreferredMethod = storage.MethodFederated
	prefs.RememberMethod = true
	prefs.AutoRedirectSSO = true
	prefs.ShowMethodSelection = false
	require.NoError(t, s.Update(prefs))

	got := s.Get()
	assert.Equal(t, storage.MethodFederated, got.PreferredMethod)
	assert.True(t, got.RememberMethod)
	assert.True(t, s.ShouldAutoRedirectSSO())
	assert.False(t, s.ShouldShowMethodSelection())
}

func TestPreferredMethod_RequiresRemember(t *testing.T) {
	s, _ := newTestStore(t)

	prefs := s.Get()
	prefs.PreferredMethod = storage.MethodLocal
	prefs.RememberMethod = false
	require.NoError(t, s.Update(prefs))

	assert.Empty(t, s.PreferredMethod())

	require.NoError(t, s.SetPreferredMethod(storage.MethodLocal))
	assert.Equal(t, storage.MethodLocal, s.PreferredMethod())

	// SetPreferredMethod also records a successful use
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].SuccessCount)
}

func TestRecordUsage(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.RecordUsage(storage.MethodLocal, true))
	require.NoError(t, s.RecordUsage(storage.MethodLocal, false))
	require.NoError(t, s.RecordUsage(storage.MethodFederated, true))

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, storage.MethodLocal, history[0].Method)
	assert.Equal(t, 1, history[0].SuccessCount)
	assert.Equal(t, 1, history[0].FailureCount)
	assert.Equal(t, storage.MethodFederated, history[1].Method)

	// Empty method is a no-op
	require.NoError(t, s.RecordUsage("", true))
	assert.Len(t, s.History(), 2)
}

func TestHistoryCap(t *testing.T) {
	s, kv := newTestStore(t)

	// Seed an oversized stored history with distinct synthetic methods.
	var history []MethodUsage
	for i := 0; i < 60; i++ {
		history = append(history, MethodUsage{
			Method:   storage.Method(fmt.Sprintf("m%02d", i)),
			LastUsed: time.Now(),
		})
	}
	data, err := json.Marshal(history)
	require.NoError(t, err)
	require.NoError(t, kv.Set(storage.KeyAuthMethodHistory, string(data)))

	require.NoError(t, s.RecordUsage(storage.MethodLocal, true))

	got := s.History()
	assert.Len(t, got, 50)
	// Oldest entries were dropped, newest kept
	assert.Equal(t, storage.MethodLocal, got[len(got)-1].Method)
}

func TestRecommendedMethod_PreferenceWins(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.RecordUsage(storage.MethodFederated, true))
	require.NoError(t, s.SetPreferredMethod(storage.MethodLocal))

	assert.Equal(t, storage.MethodLocal, s.RecommendedMethod())
}

func TestRecommendedMethod_Scoring(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	// Federated: 3 successes, recent. Local: 1 success 3 failures, recent.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordUsage(storage.MethodFederated, true))
	}
	require.NoError(t, s.RecordUsage(storage.MethodLocal, true))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordUsage(storage.MethodLocal, false))
	}

	assert.Equal(t, storage.MethodFederated, s.RecommendedMethod())
}

func TestRecommendedMethod_RecencyDecay(t *testing.T) {
	s, kv := newTestStore(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	// Both methods fully succeed, but local was used 60 days ago (decayed
	// past the 30-day window) while federated was used today.
	history := []MethodUsage{
		{Method: storage.MethodLocal, LastUsed: now.Add(-60 * 24 * time.Hour), SuccessCount: 5},
		{Method: storage.MethodFederated, LastUsed: now, SuccessCount: 5},
	}
	data, err := json.Marshal(history)
	require.NoError(t, err)
	require.NoError(t, kv.Set(storage.KeyAuthMethodHistory, string(data)))

	assert.Equal(t, storage.MethodFederated, s.RecommendedMethod())
}

func TestRecommendedMethod_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Empty(t, s.RecommendedMethod())
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.RecordUsage(storage.MethodLocal, true))
	require.NoError(t, s.RecordUsage(storage.MethodLocal, false))

	stats := s.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, storage.MethodLocal, stats[0].Method)
	assert.Equal(t, 2, stats[0].TotalAttempts)
	assert.InDelta(t, 0.5, stats[0].SuccessRate, 0.001)
}

func TestThemeAndLanguage(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.SetTheme("dark"))
	require.NoError(t, s.SetLanguage("de"))

	assert.Equal(t, "dark", s.Theme())
	assert.Equal(t, "de", s.Language())
}

func TestLegacyMigration(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set("preferredAuthMethod", "federated"))

	s := NewStore(kv)

	assert.Equal(t, storage.MethodFederated, s.PreferredMethod())
	_, err := kv.Get("preferredAuthMethod")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestReset(t *testing.T) {
	s, kv := newTestStore(t)

	require.NoError(t, s.SetPreferredMethod(storage.MethodLocal))
	require.NoError(t, s.Reset())

	assert.Empty(t, s.PreferredMethod())
	_, err := kv.Get(storage.KeyAuthMethodHistory)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestClearAll(t *testing.T) {
	s, kv := newTestStore(t)

	require.NoError(t, s.SetPreferredMethod(storage.MethodLocal))
	require.NoError(t, s.ClearAll())

	_, err := kv.Get(storage.KeyUserPreferences)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
	_, err = kv.Get(storage.KeyAuthMethodHistory)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}
