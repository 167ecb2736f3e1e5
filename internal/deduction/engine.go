// Package deduction derives, from a player's own move history, which board
// members are still consistent with every answer that player has received.
// It is a pure view over the persisted move log and is never stored, so it
// cannot drift from the log.
package deduction

import (
	"guesswho-server/internal/catalog"
	"guesswho-server/internal/models"

	"github.com/google/uuid"
)

// Mode selects how QuestionsApplied is accumulated.
type Mode int

const (
	// LiveView stops accumulating applied questions once a candidate is
	// eliminated; this is what the board UI renders.
	LiveView Mode = iota
	// AuditView records every processed move against every candidate so the
	// full trail can be explained, elimination marking unchanged.
	AuditView
)

// CandidateHistory annotates one candidate's elimination state.
type CandidateHistory struct {
	Member           models.BoardMember `json:"member"`
	IsEliminated     bool               `json:"isEliminated"`
	EliminatedBy     *models.Move       `json:"eliminatedBy,omitempty"`
	QuestionsApplied []models.Move      `json:"questionsApplied"`
}

// Result is the outcome of one deduction pass.
type Result struct {
	Remaining []models.BoardMember            `json:"remaining"`
	History   map[uuid.UUID]*CandidateHistory `json:"history"`
}

// ComputeRemaining processes ownMoves strictly in append order against every
// candidate. A candidate is eliminated by the first move whose recorded
// answer differs from what that candidate would truthfully answer. Moves
// whose question no longer resolves in the catalog are skipped rather than
// aborting the pass; deduction is a best-effort derived view.
//
// Deterministic for a given candidate set and move order; each candidate's
// state depends only on its own attributes.
func ComputeRemaining(candidates []models.BoardMember, ownMoves []models.Move, cat *catalog.Catalog, mode Mode) *Result {
	res := &Result{
		History: make(map[uuid.UUID]*CandidateHistory, len(candidates)),
	}
	for i := range candidates {
		res.History[candidates[i].ID] = &CandidateHistory{
			Member:           candidates[i],
			QuestionsApplied: []models.Move{},
		}
	}

	for _, move := range ownMoves {
		q, err := cat.Question(move.QuestionID)
		if err != nil {
			// Stale or renumbered question; skip this move entirely.
			continue
		}
		for i := range candidates {
			h := res.History[candidates[i].ID]
			if h.IsEliminated && mode == LiveView {
				continue
			}
			h.QuestionsApplied = append(h.QuestionsApplied, move)
			if h.IsEliminated {
				continue
			}
			if catalog.ResolveAnswer(q, &candidates[i]) != move.Answer {
				h.IsEliminated = true
				eliminatedBy := move
				h.EliminatedBy = &eliminatedBy
			}
		}
	}

	res.Remaining = make([]models.BoardMember, 0, len(candidates))
	for i := range candidates {
		if !res.History[candidates[i].ID].IsEliminated {
			res.Remaining = append(res.Remaining, candidates[i])
		}
	}
	return res
}

// CountEliminatedBy returns how many not-yet-eliminated candidates a fresh
// answer would knock out. Used to annotate moves as they are appended.
func CountEliminatedBy(remaining []models.BoardMember, q *catalog.Question, answer bool) int {
	n := 0
	for i := range remaining {
		if catalog.ResolveAnswer(q, &remaining[i]) != answer {
			n++
		}
	}
	return n
}
