package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is a one-way state machine: active -> completed | abandoned.
// Both end states are terminal.
type GameStatus string

const (
	GameStatusActive    GameStatus = "active"
	GameStatusCompleted GameStatus = "completed"
	GameStatusAbandoned GameStatus = "abandoned"
)

// IsTerminal reports whether no further transitions are possible.
func (s GameStatus) IsTerminal() bool {
	return s == GameStatusCompleted || s == GameStatusAbandoned
}

// Board size limits enforced when a game is seeded.
const (
	MinBoardSize = 16
	MaxBoardSize = 20
)

// Move is one question-and-answer exchange. Append-only; once written it is
// never edited or removed. MoveIndex is the authoritative ordering, the
// timestamp is advisory only.
type Move struct {
	ID              uuid.UUID `json:"id" db:"id"`
	GameID          uuid.UUID `json:"gameId" db:"game_id"`
	MoveIndex       int       `json:"moveIndex" db:"move_index"`
	PlayerID        uuid.UUID `json:"playerId" db:"player_id"`
	PlayerName      string    `json:"playerName" db:"player_name"`
	QuestionID      string    `json:"questionId" db:"question_id"`
	QuestionText    string    `json:"questionText" db:"question_text"`
	Answer          bool      `json:"answer" db:"answer"`
	EliminatedCount *int      `json:"eliminatedCount,omitempty" db:"eliminated_count"`
	AskedAt         time.Time `json:"askedAt" db:"asked_at"`
}

// Game is the authoritative record of one match.
//
// Target convention: PlayerOneTargetID is the candidate player one is trying
// to guess, and likewise for player two. Every call site must go through
// TargetFor/Opponent instead of reading the fields directly, so the direction
// is decided exactly once.
type Game struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	Status            GameStatus    `json:"status" db:"status"`
	PlayerOneID       uuid.UUID     `json:"playerOneId" db:"player_one_id"`
	PlayerTwoID       uuid.UUID     `json:"playerTwoId" db:"player_two_id"`
	PlayerOneTargetID uuid.UUID     `json:"playerOneTargetId" db:"player_one_target_id"`
	PlayerTwoTargetID uuid.UUID     `json:"playerTwoTargetId" db:"player_two_target_id"`
	BoardMemberIDs    []uuid.UUID   `json:"boardMemberIds" db:"board_member_ids"`
	CurrentTurn       uuid.UUID     `json:"currentTurn" db:"current_turn"`
	WinnerID          uuid.NullUUID `json:"winnerId,omitempty" db:"winner_id"`
	Version           int64         `json:"-" db:"version"`
	StartedAt         time.Time     `json:"startedAt" db:"started_at"`
	LastActivityAt    time.Time     `json:"lastActivityAt" db:"last_activity_at"`
	EndedAt           *time.Time    `json:"endedAt,omitempty" db:"ended_at"`

	// Moves ordered by MoveIndex; loaded alongside the game row.
	Moves []Move `json:"moves" db:"-"`
	// Board holds the resolved member records for BoardMemberIDs.
	Board []BoardMember `json:"board,omitempty" db:"-"`
}

// IsParticipant reports whether playerID is one of the two players.
func (g *Game) IsParticipant(playerID uuid.UUID) bool {
	return playerID == g.PlayerOneID || playerID == g.PlayerTwoID
}

// Opponent returns the other participant's id. The caller must have verified
// participation; a non-participant gets uuid.Nil and false.
func (g *Game) Opponent(playerID uuid.UUID) (uuid.UUID, bool) {
	switch playerID {
	case g.PlayerOneID:
		return g.PlayerTwoID, true
	case g.PlayerTwoID:
		return g.PlayerOneID, true
	}
	return uuid.Nil, false
}

// TargetFor returns the id of the candidate that playerID is trying to guess.
// This is the single place the target cross-assignment is resolved.
func (g *Game) TargetFor(playerID uuid.UUID) (uuid.UUID, bool) {
	switch playerID {
	case g.PlayerOneID:
		return g.PlayerOneTargetID, true
	case g.PlayerTwoID:
		return g.PlayerTwoTargetID, true
	}
	return uuid.Nil, false
}

// BoardMember returns the resolved board member with the given id, if loaded.
func (g *Game) BoardMember(memberID uuid.UUID) (*BoardMember, bool) {
	for i := range g.Board {
		if g.Board[i].ID == memberID {
			return &g.Board[i], true
		}
	}
	return nil, false
}

// OwnMoves returns the moves asked by playerID, preserving append order.
// Deduction is always computed over a player's own questions only.
func (g *Game) OwnMoves(playerID uuid.UUID) []Move {
	own := make([]Move, 0, len(g.Moves))
	for _, m := range g.Moves {
		if m.PlayerID == playerID {
			own = append(own, m)
		}
	}
	return own
}

// GameUpdate is the payload published to the change feed after a committed
// transition. It is a read-only side channel for observers and must never be
// used to gate a transition.
type GameUpdate struct {
	GameID      string     `json:"gameId"`
	PlayerOneID string     `json:"playerOneId"`
	PlayerTwoID string     `json:"playerTwoId"`
	Status      GameStatus `json:"status"`
	CurrentTurn string     `json:"currentTurn,omitempty"`
	WinnerID    string     `json:"winnerId,omitempty"`
	LastMove    *Move      `json:"lastMove,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
