// ABOUTME: User preference store for auth method selection, theme, and language
// ABOUTME: Tracks per-method success/failure history to rank login options

package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/loreworks/lore-console/internal/storage"
)

// historyCap bounds the auth method history to prevent unlimited growth.
const historyCap = 50

// legacyPreferredMethodKey is the pre-unification storage key migrated into
// the preferences record on first load.
const legacyPreferredMethodKey = "preferredAuthMethod"

// Preferences is the per-user preference record. It only ranks which login
// option to present or auto-trigger; it never affects authorization.
type Preferences struct {
	PreferredMethod     storage.Method `json:"preferredAuthMethod,omitempty"`
	RememberMethod      bool           `json:"rememberAuthMethod"`
	AutoRedirectSSO     bool           `json:"autoRedirectSSO"`
	ShowMethodSelection bool           `json:"showAuthMethodSelection"`
	Theme               string         `json:"theme"`
	Language            string         `json:"language"`
}

// MethodUsage records authentication attempts for one method.
type MethodUsage struct {
	Method       storage.Method `json:"method"`
	LastUsed     time.Time      `json:"lastUsed"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
}

// MethodStats is the derived per-method view used for login-option ranking.
type MethodStats struct {
	Method        storage.Method
	SuccessRate   float64
	TotalAttempts int
	LastUsed      time.Time
}

// Store reads and writes preference state through the shared storage layer.
type Store struct {
	kv     storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a preference store backed by kv.
func NewStore(kv storage.Store) *Store {
	s := &Store{
		kv:     kv,
		logger: slog.Default().With("component", "prefs"),
		now:    time.Now,
	}
	s.migrateLegacy()
	return s
}

// defaults returns the preference record used when nothing is stored.
func defaults() Preferences {
	return Preferences{
		ShowMethodSelection: true,
		Theme:               "auto",
		Language:            "en",
	}
}

// Get returns the stored preferences merged over the defaults.
func (s *Store) Get() Preferences {
	prefs := defaults()

	raw, err := s.kv.Get(storage.KeyUserPreferences)
	if err != nil {
		return prefs
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		s.logger.Warn("discarding unreadable preferences", "error", err)
		return defaults()
	}
	return prefs
}

// Update stores the given preferences record.
func (s *Store) Update(prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := s.kv.Set(storage.KeyUserPreferences, string(data)); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}

// Reset restores defaults and drops the auth method history.
func (s *Store) Reset() error {
	if err := s.Update(defaults()); err != nil {
		return err
	}
	return s.kv.Delete(storage.KeyAuthMethodHistory)
}

// PreferredMethod returns the remembered method, or empty when the user has
// not opted to remember one.
func (s *Store) PreferredMethod() storage.Method {
	prefs := s.Get()
	if !prefs.RememberMethod {
		return ""
	}
	return prefs.PreferredMethod
}

// SetPreferredMethod remembers the method and records a successful use.
func (s *Store) SetPreferredMethod(method storage.Method) error {
	prefs := s.Get()
	prefs.PreferredMethod = method
	prefs.RememberMethod = true
	if err := s.Update(prefs); err != nil {
		return err
	}
	return s.RecordUsage(method, true)
}

// ShouldAutoRedirectSSO reports whether login should jump straight into the
// federated flow without showing the method selection.
func (s *Store) ShouldAutoRedirectSSO() bool {
	prefs := s.Get()
	return prefs.AutoRedirectSSO && prefs.PreferredMethod == storage.MethodFederated
}

// ShouldShowMethodSelection reports whether the login screen should present
// both methods.
func (s *Store) ShouldShowMethodSelection() bool {
	prefs := s.Get()
	return prefs.ShowMethodSelection || !prefs.RememberMethod
}

// RecordUsage updates the bounded history with one attempt outcome.
func (s *Store) RecordUsage(method storage.Method, success bool) error {
	if method == "" {
		return nil
	}

	history := s.History()

	var entry *MethodUsage
	for i := range history {
		if history[i].Method == method {
			entry = &history[i]
			break
		}
	}

	if entry != nil {
		entry.LastUsed = s.now()
		if success {
			entry.SuccessCount++
		} else {
			entry.FailureCount++
		}
	} else {
		usage := MethodUsage{Method: method, LastUsed: s.now()}
		if success {
			usage.SuccessCount = 1
		} else {
			usage.FailureCount = 1
		}
		history = append(history, usage)
	}

	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding auth history: %w", err)
	}
	if err := s.kv.Set(storage.KeyAuthMethodHistory, string(data)); err != nil {
		return fmt.Errorf("writing auth history: %w", err)
	}
	return nil
}

// History returns the stored auth method history, oldest first.
func (s *Store) History() []MethodUsage {
	raw, err := s.kv.Get(storage.KeyAuthMethodHistory)
	if err != nil {
		return nil
	}

	var history []MethodUsage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		s.logger.Warn("discarding unreadable auth history", "error", err)
		return nil
	}
	return history
}

// RecommendedMethod ranks which login method to suggest. A remembered
// preference wins outright; otherwise methods are scored by success rate
// (weight 0.7) and recency with a 30-day decay (weight 0.3).
func (s *Store) RecommendedMethod() storage.Method {
	prefs := s.Get()
	if prefs.PreferredMethod != "" && prefs.RememberMethod {
		return prefs.PreferredMethod
	}

	history := s.History()
	if len(history) == 0 {
		return ""
	}

	type scored struct {
		method storage.Method
		score  float64
	}

	ranked := make([]scored, 0, len(history))
	for _, h := range history {
		total := h.SuccessCount + h.FailureCount
		successRate := 0.0
		if total > 0 {
			successRate = float64(h.SuccessCount) / float64(total)
		}
		daysSinceUse := s.now().Sub(h.LastUsed).Hours() / 24
		recency := math.Max(0, 1-daysSinceUse/30)

		ranked = append(ranked, scored{
			method: h.Method,
			score:  successRate*0.7 + recency*0.3,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked[0].method
}

// Stats returns the derived per-method statistics.
func (s *Store) Stats() []MethodStats {
	history := s.History()

	stats := make([]MethodStats, 0, len(history))
	for _, h := range history {
		total := h.SuccessCount + h.FailureCount
		rate := 0.0
		if total > 0 {
			rate = float64(h.SuccessCount) / float64(total)
		}
		stats = append(stats, MethodStats{
			Method:        h.Method,
			SuccessRate:   rate,
			TotalAttempts: total,
			LastUsed:      h.LastUsed,
		})
	}
	return stats
}

// Theme returns the stored theme preference.
func (s *Store) Theme() string {
	return s.Get().Theme
}

// SetTheme stores the theme preference.
func (s *Store) SetTheme(theme string) error {
	prefs := s.Get()
	prefs.Theme = theme
	return s.Update(prefs)
}

// Language returns the stored language preference.
func (s *Store) Language() string {
	return s.Get().Language
}

// SetLanguage stores the language preference.
func (s *Store) SetLanguage(language string) error {
	prefs := s.Get()
	prefs.Language = language
	return s.Update(prefs)
}

// ClearAll removes all preference state. Used by logout-everywhere.
func (s *Store) ClearAll() error {
	if err := s.kv.Delete(storage.KeyUserPreferences); err != nil {
		return err
	}
	return s.kv.Delete(storage.KeyAuthMethodHistory)
}

// migrateLegacy folds the old standalone preferred-method key into the
// preferences record.
func (s *Store) migrateLegacy() {
	raw, err := s.kv.Get(legacyPreferredMethodKey)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Warn("reading legacy preference key", "error", err)
		}
		return
	}

	prefs := s.Get()
	prefs.PreferredMethod = storage.Method(raw)
	prefs.RememberMethod = true
	if err := s.Update(prefs); err != nil {
		s.logger.Warn("migrating legacy preference key", "error", err)
		return
	}
	_ = s.kv.Delete(legacyPreferredMethodKey)
}
