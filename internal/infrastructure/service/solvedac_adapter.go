// Package service adapts infrastructure clients to application interfaces.
package service

import (
	"context"

	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/application/query"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/external/solvedac"
)

// SolvedAcAdapter adapts solvedac.Client to query.SolvedAcProfileSource and
// command.SolvedCountSource.
type SolvedAcAdapter struct {
	client *solvedac.Client
}

var (
	_ query.SolvedAcProfileSource = (*SolvedAcAdapter)(nil)
	_ command.SolvedCountSource   = (*SolvedAcAdapter)(nil)
)

// NewSolvedAcAdapter creates a new SolvedAcAdapter.
func NewSolvedAcAdapter(client *solvedac.Client) *SolvedAcAdapter {
	return &SolvedAcAdapter{client: client}
}

// SolvedCount returns the handle's solved counter.
func (a *SolvedAcAdapter) SolvedCount(ctx context.Context, handle string) (int, error) {
	return a.client.SolvedCount(ctx, handle)
}

// Profile returns the challenge-page view of a solved.ac user.
func (a *SolvedAcAdapter) Profile(ctx context.Context, handle string) (*query.SolvedAcProfile, error) {
	dto, err := a.client.GetUser(ctx, handle)
	if err != nil {
		return nil, err
	}

	p := &query.SolvedAcProfile{
		Handle:                  dto.Handle,
		ProfileImageURL:         dto.ProfileImageURL,
		Tier:                    dto.Tier,
		Rating:                  dto.Rating,
		SolvedCount:             dto.SolvedCount,
		Class:                   dto.Class,
		ClassDecoration:         dto.ClassDecoration,
		MaxStreak:               dto.MaxStreak,
		ArenaRating:             dto.ArenaRating,
		ArenaTier:               dto.ArenaTier,
		ArenaMaxRating:          dto.ArenaMaxRating,
		ArenaMaxTier:            dto.ArenaMaxTier,
		ArenaCompetedRoundCount: dto.ArenaCompetedRoundCount,
	}
	if p.Handle == "" {
		p.Handle = handle
	}
	return p, nil
}

// TopSolvedProblems returns up to limit solved problems, hardest first.
func (a *SolvedAcAdapter) TopSolvedProblems(ctx context.Context, handle string, limit int) ([]query.SolvedAcProblem, error) {
	dtos, err := a.client.TopSolvedProblems(ctx, handle, limit)
	if err != nil {
		return nil, err
	}

	problems := make([]query.SolvedAcProblem, 0, len(dtos))
	for _, d := range dtos {
		problems = append(problems, query.SolvedAcProblem{
			ProblemID: d.ProblemID,
			Title:     d.TitleKo,
			Level:     d.Level,
		})
	}
	return problems, nil
}
