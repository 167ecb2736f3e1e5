package interfaces

import (
	"context"
	"time"

	"guesswho-server/internal/models"

	"github.com/google/uuid"
)

// GameRepository persists authoritative game records. Every mutating method
// takes the expected record version and must fail with
// models.ErrStoreConflict when the record changed since it was read, never
// silently merge.
type GameRepository interface {
	// Create inserts a fully seeded game and its (empty) move log.
	Create(ctx context.Context, querier DBTX, game *models.Game) error

	// GetByID loads a game with its moves ordered by move index.
	// Returns models.ErrGameNotFound if absent.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Game, error)

	// ListByPlayer lists games where the player participates, most recent
	// activity first. Moves are not loaded.
	ListByPlayer(ctx context.Context, querier DBTX, playerID uuid.UUID, limit, offset int) ([]*models.Game, error)

	// AppendMoveAndAdvanceTurn appends one move and flips the turn in a
	// single versioned update.
	AppendMoveAndAdvanceTurn(ctx context.Context, querier DBTX, gameID uuid.UUID, expectedVersion int64, move *models.Move, nextTurn uuid.UUID) error

	// AdvanceTurn flips the turn without appending a move (incorrect guess).
	AdvanceTurn(ctx context.Context, querier DBTX, gameID uuid.UUID, expectedVersion int64, nextTurn uuid.UUID) error

	// FinalizeStatus moves the game to a terminal status, setting the winner
	// (if any) and the end timestamp.
	FinalizeStatus(ctx context.Context, querier DBTX, gameID uuid.UUID, expectedVersion int64, status models.GameStatus, winner uuid.NullUUID, endedAt time.Time) error

	// MarkStaleActiveAsAbandoned abandons active games with no activity for
	// longer than staleThreshold. Returns the number of games updated.
	MarkStaleActiveAsAbandoned(ctx context.Context, querier DBTX, staleThreshold time.Duration) (int64, error)
}

// PlayerRepository maps identities to internal player records.
type PlayerRepository interface {
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Player, error)
	// GetByExternalID resolves an external identity; returns
	// models.ErrProfileNotFound when no player record exists for it.
	GetByExternalID(ctx context.Context, querier DBTX, externalID string) (*models.Player, error)
}

// MemberRepository reads board members from the community directory.
type MemberRepository interface {
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.BoardMember, error)
	// ListByIDs loads the given members; missing ids are simply absent from
	// the result, the caller decides whether that is a fault.
	ListByIDs(ctx context.Context, querier DBTX, ids []uuid.UUID) ([]models.BoardMember, error)
}

// GameCache is a read-through projection of game records. It is advisory:
// a miss or failure falls back to the store, and it must never be used to
// gate a transition.
type GameCache interface {
	Get(ctx context.Context, gameID uuid.UUID) (*models.Game, error)
	Set(ctx context.Context, game *models.Game) error
	Invalidate(ctx context.Context, gameID uuid.UUID) error
}
