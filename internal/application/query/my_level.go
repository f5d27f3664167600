package query

import (
	"context"
	"fmt"

	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MY LEVEL QUERY
// Recomputes the caller's status and wraps it in the profile-card envelope.
// ══════════════════════════════════════════════════════════════════════════════

// MyLevelQuery contains the parameters of the query.
type MyLevelQuery struct {
	UserID string
}

// Validate validates the query.
func (q MyLevelQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("my_level: %w: user_id is required", shared.ErrInvalidID)
	}
	return nil
}

// ExpDTO is the experience block of the profile card.
type ExpDTO struct {
	Total          int     `json:"total"`
	Max            int     `json:"max"`
	Stage          int     `json:"stage"`
	Step           int     `json:"step"`
	GlobalProgress float64 `json:"globalProgress"`
	StepExpCurrent int     `json:"stepExpCurrent"`
	StepExpMax     int     `json:"stepExpMax"`
	IsClear        bool    `json:"isClear"`
}

// MyLevelDTO is the profile-card envelope. Trait, background and submarine
// are placeholders the frontend already renders.
type MyLevelDTO struct {
	Exp        ExpDTO   `json:"exp"`
	Trait      *string  `json:"trait"`
	Badges     []string `json:"badges"`
	Background *string  `json:"background"`
	Submarine  *string  `json:"submarine"`
}

// NewExpDTO maps a snapshot to the experience block.
func NewExpDTO(s *gamification.StatusSnapshot) ExpDTO {
	return ExpDTO{
		Total:          s.TotalScore,
		Max:            s.MaxScore,
		Stage:          s.Stage,
		Step:           s.Step,
		GlobalProgress: s.GlobalProgress,
		StepExpCurrent: s.StepExpCurrent,
		StepExpMax:     s.StepExpMax,
		IsClear:        s.IsClear,
	}
}

// MyLevelHandler handles MyLevelQuery.
type MyLevelHandler struct {
	status command.StatusRefresher
}

// NewMyLevelHandler creates a new MyLevelHandler.
func NewMyLevelHandler(status command.StatusRefresher) *MyLevelHandler {
	return &MyLevelHandler{status: status}
}

// Handle refreshes the profile and returns the envelope.
func (h *MyLevelHandler) Handle(ctx context.Context, q MyLevelQuery) (*MyLevelDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	res, err := h.status.Handle(ctx, command.RefreshStatusCommand{UserID: q.UserID})
	if err != nil {
		return nil, fmt.Errorf("my_level: %w", err)
	}

	return &MyLevelDTO{
		Exp:    NewExpDTO(res.Snapshot),
		Badges: []string{},
	}, nil
}
