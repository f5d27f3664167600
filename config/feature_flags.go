package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with gradual rollout and per-user
// overrides.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// userOverrides maps user ID -> feature -> enabled.
	userOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent (0-100). Users are bucketed by a hash of their ID.
	RolloutPercent int
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID string
}

// Predefined feature flag names.
const (
	// FeatureSolvedAcCredit enables ledger reconciliation against solved.ac.
	// When off the stored credited count is still read but never refreshed.
	FeatureSolvedAcCredit = "gamification.solvedac_credit"

	// FeatureAttendanceMap enables the six-day attendance map.
	FeatureAttendanceMap = "gamification.attendance_map"

	// FeatureChallenge enables the solved.ac challenge page.
	FeatureChallenge = "student.challenge"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureSolvedAcCredit] = &Feature{
		Name:           FeatureSolvedAcCredit,
		Description:    "Credit problems solved on solved.ac",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAttendanceMap] = &Feature{
		Name:           FeatureAttendanceMap,
		Description:    "Six-day attendance map",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureChallenge] = &Feature{
		Name:           FeatureChallenge,
		Description:    "solved.ac challenge page",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment applies FEATURE_<NAME>=true|false|<percent> and the
// FEATURE_USER_OVERRIDES list. Malformed values are ignored.
//
//	FEATURE_STUDENT_CHALLENGE=50
//	FEATURE_USER_OVERRIDES=u-17:student.challenge=on,u-20:gamification.attendance_map=off
func (ff *FeatureFlags) loadFromEnvironment() {
	for name := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			percent := 0
			if b {
				percent = 100
			}
			_ = ff.SetRolloutPercent(name, percent)
			continue
		}
		if p, err := strconv.Atoi(val); err == nil {
			_ = ff.SetRolloutPercent(name, p)
		}
	}

	for _, entry := range strings.Split(os.Getenv("FEATURE_USER_OVERRIDES"), ",") {
		userID, rest, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			continue
		}
		name, state, ok := strings.Cut(rest, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(state) {
		case "on", "true":
			ff.SetUserOverride(userID, name, true)
		case "off", "false":
			ff.SetUserOverride(userID, name, false)
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "student.challenge" -> "FEATURE_STUDENT_CHALLENGE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context evaluates the global switch only.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.UserID != "" {
		if enabled, ok := ff.userOverrides[ctx.UserID][featureName]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}
	return feature.RolloutPercent > 0
}

// isInRollout buckets users with a stable hash so they keep their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// SetUserOverride forces a feature on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// Enabled is IsEnabled for a plain user ID.
func (ff *FeatureFlags) Enabled(featureName, userID string) bool {
	return ff.IsEnabled(featureName, &FeatureContext{UserID: userID})
}

// SolvedAcCreditEnabled reports the global solved.ac credit switch.
func (ff *FeatureFlags) SolvedAcCreditEnabled() bool {
	return ff.IsEnabled(FeatureSolvedAcCredit, nil)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
