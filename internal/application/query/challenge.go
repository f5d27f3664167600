package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE QUERY
// Mirrors the caller's solved.ac profile for the challenge page. Nothing is
// computed here; values are passed through as solved.ac reports them.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeQuery contains the parameters of the query.
type ChallengeQuery struct {
	UserID string
}

// Validate validates the query.
func (q ChallengeQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("challenge: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────────────────────────────────────

// ChallengeDTO is the challenge page payload.
type ChallengeDTO struct {
	Handle               string             `json:"handle"`
	ProfileImageURL      *string            `json:"profile_image_url"`
	Tier                 int                `json:"tier"`
	Rating               int                `json:"rating"`
	SolvedCount          int                `json:"solved_count"`
	ClassLevel           *int               `json:"class_level"`
	ClassDecoration      *string            `json:"class_decoration"`
	Arena                ArenaDTO           `json:"arena"`
	Streak               StreakDTO          `json:"streak"`
	RecentSolvedProblems []SolvedProblemDTO `json:"recent_solved_problems"`
}

// ArenaDTO groups the arena statistics.
type ArenaDTO struct {
	Rating             int `json:"rating"`
	Tier               int `json:"tier"`
	MaxRating          int `json:"max_rating"`
	MaxTier            int `json:"max_tier"`
	CompetedRoundCount int `json:"competed_round_count"`
}

// StreakDTO carries the longest solving streak.
type StreakDTO struct {
	Max int `json:"max"`
}

// SolvedProblemDTO is one problem the user solved.
type SolvedProblemDTO struct {
	ProblemID int    `json:"problem_id"`
	Title     string `json:"title"`
	Level     int    `json:"level"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Dependencies
// ─────────────────────────────────────────────────────────────────────────────

// SolvedAcProfile is the solved.ac user as the challenge page needs it.
type SolvedAcProfile struct {
	Handle                  string
	ProfileImageURL         *string
	Tier                    int
	Rating                  int
	SolvedCount             int
	Class                   *int
	ClassDecoration         *string
	MaxStreak               int
	ArenaRating             int
	ArenaTier               int
	ArenaMaxRating          int
	ArenaMaxTier            int
	ArenaCompetedRoundCount int
}

// SolvedAcProblem is a problem as reported by solved.ac search.
type SolvedAcProblem struct {
	ProblemID int
	Title     string
	Level     int
}

// SolvedAcProfileSource reads public solved.ac data.
type SolvedAcProfileSource interface {
	// Profile returns the user behind handle.
	Profile(ctx context.Context, handle string) (*SolvedAcProfile, error)

	// TopSolvedProblems returns up to limit solved problems, hardest first.
	TopSolvedProblems(ctx context.Context, handle string, limit int) ([]SolvedAcProblem, error)
}

// ChallengeCache stores built payloads per handle.
type ChallengeCache interface {
	Get(ctx context.Context, handle string) (*ChallengeDTO, error)
	Set(ctx context.Context, handle string, dto *ChallengeDTO, ttl time.Duration) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Handler
// ─────────────────────────────────────────────────────────────────────────────

// ChallengeHandlerConfig contains configuration for the handler.
type ChallengeHandlerConfig struct {
	// ProblemLimit is how many solved problems are listed.
	ProblemLimit int

	// CacheTTL is how long a payload is served from cache.
	CacheTTL time.Duration
}

// DefaultChallengeHandlerConfig returns default configuration.
func DefaultChallengeHandlerConfig() ChallengeHandlerConfig {
	return ChallengeHandlerConfig{
		ProblemLimit: 5,
		CacheTTL:     5 * time.Minute,
	}
}

// ChallengeHandler handles ChallengeQuery.
type ChallengeHandler struct {
	accounts gamification.AccountDirectory
	source   SolvedAcProfileSource
	cache    ChallengeCache
	config   ChallengeHandlerConfig
	logger   *logger.Logger
}

// NewChallengeHandler creates a new ChallengeHandler. cache may be nil.
func NewChallengeHandler(
	accounts gamification.AccountDirectory,
	source SolvedAcProfileSource,
	cache ChallengeCache,
	config ChallengeHandlerConfig,
	log *logger.Logger,
) *ChallengeHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if config.ProblemLimit <= 0 {
		config.ProblemLimit = DefaultChallengeHandlerConfig().ProblemLimit
	}
	return &ChallengeHandler{
		accounts: accounts,
		source:   source,
		cache:    cache,
		config:   config,
		logger:   log.With(logger.Component("challenge")),
	}
}

// Handle executes the query.
//
// Errors from solved.ac are returned as is; a failed problem search only
// empties the problem list.
func (h *ChallengeHandler) Handle(ctx context.Context, q ChallengeQuery) (*ChallengeDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	handle, err := h.resolveHandle(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	if cached := h.fromCache(ctx, handle); cached != nil {
		return cached, nil
	}

	profile, err := h.source.Profile(ctx, handle)
	if err != nil {
		h.logger.Warn("solved.ac profile fetch failed",
			logger.UserID(q.UserID),
			logger.Handle(handle),
			logger.Err(err),
		)
		return nil, err
	}

	problems, err := h.source.TopSolvedProblems(ctx, profile.Handle, h.config.ProblemLimit)
	if err != nil {
		h.logger.Warn("solved.ac problem search failed",
			logger.Handle(profile.Handle),
			logger.Err(err),
		)
		problems = nil
	}

	dto := buildChallenge(profile, problems)

	if h.cache != nil && h.config.CacheTTL > 0 {
		if err := h.cache.Set(ctx, handle, dto, h.config.CacheTTL); err != nil {
			h.logger.Warn("challenge cache write failed", logger.Handle(handle), logger.Err(err))
		}
	}

	return dto, nil
}

// resolveHandle returns the configured handle, falling back to the username.
func (h *ChallengeHandler) resolveHandle(ctx context.Context, userID string) (string, error) {
	handle, err := h.accounts.SolvedAcHandle(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("challenge: handle lookup: %w", err)
	}
	if handle = strings.TrimSpace(handle); handle != "" {
		return handle, nil
	}

	username, err := h.accounts.Username(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("challenge: username lookup: %w", err)
	}
	if username = strings.TrimSpace(username); username != "" {
		return username, nil
	}
	return "", shared.ErrNoHandleConfigured
}

func (h *ChallengeHandler) fromCache(ctx context.Context, handle string) *ChallengeDTO {
	if h.cache == nil {
		return nil
	}
	dto, err := h.cache.Get(ctx, handle)
	if err != nil {
		h.logger.Debug("challenge cache read failed", logger.Handle(handle), logger.Err(err))
		return nil
	}
	return dto
}

func buildChallenge(p *SolvedAcProfile, problems []SolvedAcProblem) *ChallengeDTO {
	recent := make([]SolvedProblemDTO, 0, len(problems))
	for _, pr := range problems {
		recent = append(recent, SolvedProblemDTO{
			ProblemID: pr.ProblemID,
			Title:     pr.Title,
			Level:     pr.Level,
		})
	}

	return &ChallengeDTO{
		Handle:          p.Handle,
		ProfileImageURL: p.ProfileImageURL,
		Tier:            p.Tier,
		Rating:          p.Rating,
		SolvedCount:     p.SolvedCount,
		ClassLevel:      p.Class,
		ClassDecoration: p.ClassDecoration,
		Arena: ArenaDTO{
			Rating:             p.ArenaRating,
			Tier:               p.ArenaTier,
			MaxRating:          p.ArenaMaxRating,
			MaxTier:            p.ArenaMaxTier,
			CompetedRoundCount: p.ArenaCompetedRoundCount,
		},
		Streak:               StreakDTO{Max: p.MaxStreak},
		RecentSolvedProblems: recent,
	}
}
