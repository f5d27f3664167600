package solvedac

import (
	"encoding/json"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is the subset of /user/show the LMS reads.
type UserDTO struct {
	Handle                  string  `json:"handle"`
	ProfileImageURL         *string `json:"profileImageUrl"`
	SolvedCount             int     `json:"solvedCount"`
	Tier                    int     `json:"tier"`
	Rating                  int     `json:"rating"`
	Class                   *int    `json:"class"`
	ClassDecoration         *string `json:"classDecoration"`
	MaxStreak               int     `json:"maxStreak"`
	ArenaRating             int     `json:"arenaRating"`
	ArenaTier               int     `json:"arenaTier"`
	ArenaMaxRating          int     `json:"arenaMaxRating"`
	ArenaMaxTier            int     `json:"arenaMaxTier"`
	ArenaCompetedRoundCount int     `json:"arenaCompetedRoundCount"`
}

// itemsEnvelope is the list wrapper some solved.ac endpoints use.
type itemsEnvelope[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

// decodeUser accepts both a bare user object and an {"items": [...]} wrapper.
// An empty wrapper means the user does not exist.
func decodeUser(body []byte) (*UserDTO, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, false, fmt.Errorf("decode user: %w", err)
	}

	if raw, wrapped := fields["items"]; wrapped {
		var items []UserDTO
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, false, fmt.Errorf("decode user items: %w", err)
			}
		}
		if len(items) == 0 {
			return nil, false, nil
		}
		return &items[0], true, nil
	}

	if _, ok := fields["solvedCount"]; !ok {
		return nil, false, fmt.Errorf("decode user: missing solvedCount")
	}

	var user UserDTO
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, false, fmt.Errorf("decode user: %w", err)
	}
	return &user, true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ProblemDTO is one item of /search/problem.
type ProblemDTO struct {
	ProblemID int    `json:"problemId"`
	TitleKo   string `json:"titleKo"`
	Level     int    `json:"level"`
}

// ProblemSearchDTO is the /search/problem response.
type ProblemSearchDTO = itemsEnvelope[ProblemDTO]
