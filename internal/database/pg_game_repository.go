package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	gameFields = `id, status, player_one_id, player_two_id, player_one_target_id, player_two_target_id,
	       board_member_ids, current_turn, winner_id, version, started_at, last_activity_at, ended_at`

	insertGameQuery = `
        INSERT INTO games
            (id, status, player_one_id, player_two_id, player_one_target_id, player_two_target_id,
             board_member_ids, current_turn, version, started_at, last_activity_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)
    `
	getGameByIDQuery = `SELECT ` + gameFields + ` FROM games WHERE id = $1`

	listGamesByPlayerQuery = `
        SELECT ` + gameFields + `
        FROM games
        WHERE player_one_id = $1 OR player_two_id = $1
        ORDER BY last_activity_at DESC
        LIMIT $2 OFFSET $3
    `
	listMovesByGameQuery = `
        SELECT id, game_id, move_index, player_id, player_name, question_id, question_text,
               answer, eliminated_count, asked_at
        FROM game_moves
        WHERE game_id = $1
        ORDER BY move_index ASC
    `
	insertMoveQuery = `
        INSERT INTO game_moves
            (id, game_id, move_index, player_id, player_name, question_id, question_text,
             answer, eliminated_count, asked_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	advanceTurnQuery = `
        UPDATE games
        SET current_turn = $3, version = version + 1, last_activity_at = $4
        WHERE id = $1 AND version = $2
    `
	finalizeStatusQuery = `
        UPDATE games
        SET status = $3, winner_id = $4, ended_at = $5, version = version + 1, last_activity_at = $5
        WHERE id = $1 AND version = $2
    `
	markStaleAbandonedQuery = `
        UPDATE games
        SET status = $1, ended_at = NOW(), version = version + 1
        WHERE status = $2 AND last_activity_at < $3
    `
	gameExistsQuery = `SELECT EXISTS(SELECT 1 FROM games WHERE id = $1)`
)

// Compile-time check.
var _ interfaces.GameRepository = (*pgGameRepository)(nil)

type pgGameRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgGameRepository creates the PostgreSQL game repository.
func NewPgGameRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.GameRepository {
	return &pgGameRepository{
		db:     db,
		logger: logger.Named("PgGameRepo"),
	}
}

// Create inserts a freshly seeded game. The record starts at version 1 with
// an empty move log.
func (r *pgGameRepository) Create(ctx context.Context, querier interfaces.DBTX, game *models.Game) error {
	if querier == nil {
		querier = r.db
	}
	if game.ID == uuid.Nil {
		game.ID = uuid.New()
	}
	now := time.Now().UTC()
	game.Status = models.GameStatusActive
	game.Version = 1
	game.StartedAt = now
	game.LastActivityAt = now

	logFields := []zap.Field{
		zap.Stringer("gameID", game.ID),
		zap.Stringer("playerOneID", game.PlayerOneID),
		zap.Stringer("playerTwoID", game.PlayerTwoID),
	}
	r.logger.Debug("Inserting new game", logFields...)

	_, err := querier.Exec(ctx, insertGameQuery,
		game.ID,
		game.Status,
		game.PlayerOneID,
		game.PlayerTwoID,
		game.PlayerOneTargetID,
		game.PlayerTwoTargetID,
		game.BoardMemberIDs,
		game.CurrentTurn,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to insert game", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to insert game: %w", err)
	}
	r.logger.Info("Game created", logFields...)
	return nil
}

// GetByID loads a game and its moves ordered by move index.
func (r *pgGameRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Game, error) {
	if querier == nil {
		querier = r.db
	}
	logFields := []zap.Field{zap.Stringer("gameID", id)}

	game := &models.Game{}
	if err := pgxscan.Get(ctx, querier, game, getGameByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Game not found", logFields...)
			return nil, models.ErrGameNotFound
		}
		r.logger.Error("Failed to get game", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get game %s: %w", id, err)
	}

	if err := pgxscan.Select(ctx, querier, &game.Moves, listMovesByGameQuery, id); err != nil {
		r.logger.Error("Failed to load game moves", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to load moves for game %s: %w", id, err)
	}

	r.logger.Debug("Game loaded", append(logFields, zap.Int("moveCount", len(game.Moves)))...)
	return game, nil
}

// ListByPlayer lists games for a player, most recent activity first.
func (r *pgGameRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, limit, offset int) ([]*models.Game, error) {
	if querier == nil {
		querier = r.db
	}
	logFields := []zap.Field{zap.Stringer("playerID", playerID), zap.Int("limit", limit), zap.Int("offset", offset)}

	games := make([]*models.Game, 0)
	if err := pgxscan.Select(ctx, querier, &games, listGamesByPlayerQuery, playerID, limit, offset); err != nil {
		r.logger.Error("Failed to list games by player", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to list games for player %s: %w", playerID, err)
	}

	r.logger.Debug("Games listed", append(logFields, zap.Int("count", len(games)))...)
	return games, nil
}

// AppendMoveAndAdvanceTurn commits one ask transition: the versioned turn
// flip and the move append succeed or fail together. A version mismatch
// yields models.ErrStoreConflict so the caller re-fetches and re-validates
// instead of retrying blind.
func (r *pgGameRepository) AppendMoveAndAdvanceTurn(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, move *models.Move, nextTurn uuid.UUID) error {
	if querier == nil {
		querier = r.db
	}
	logFields := []zap.Field{
		zap.Stringer("gameID", gameID),
		zap.Int64("expectedVersion", expectedVersion),
		zap.String("questionID", move.QuestionID),
	}

	if err := r.advanceTurn(ctx, querier, gameID, expectedVersion, nextTurn, move.AskedAt); err != nil {
		return err
	}

	if move.ID == uuid.Nil {
		move.ID = uuid.New()
	}
	move.GameID = gameID
	_, err := querier.Exec(ctx, insertMoveQuery,
		move.ID,
		move.GameID,
		move.MoveIndex,
		move.PlayerID,
		move.PlayerName,
		move.QuestionID,
		move.QuestionText,
		move.Answer,
		move.EliminatedCount,
		move.AskedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append move", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to append move to game %s: %w", gameID, err)
	}

	r.logger.Info("Move appended and turn advanced", append(logFields, zap.Int("moveIndex", move.MoveIndex))...)
	return nil
}

// AdvanceTurn flips the turn without a move append (incorrect guess).
func (r *pgGameRepository) AdvanceTurn(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, nextTurn uuid.UUID) error {
	if querier == nil {
		querier = r.db
	}
	return r.advanceTurn(ctx, querier, gameID, expectedVersion, nextTurn, time.Now().UTC())
}

func (r *pgGameRepository) advanceTurn(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, nextTurn uuid.UUID, at time.Time) error {
	logFields := []zap.Field{zap.Stringer("gameID", gameID), zap.Int64("expectedVersion", expectedVersion)}

	cmdTag, err := querier.Exec(ctx, advanceTurnQuery, gameID, expectedVersion, nextTurn, at)
	if err != nil {
		r.logger.Error("Failed to advance turn", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to advance turn for game %s: %w", gameID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, querier, gameID, logFields)
	}
	return nil
}

// FinalizeStatus moves a game into a terminal status under version CAS.
func (r *pgGameRepository) FinalizeStatus(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, status models.GameStatus, winner uuid.NullUUID, endedAt time.Time) error {
	if querier == nil {
		querier = r.db
	}
	logFields := []zap.Field{
		zap.Stringer("gameID", gameID),
		zap.Int64("expectedVersion", expectedVersion),
		zap.String("status", string(status)),
	}

	cmdTag, err := querier.Exec(ctx, finalizeStatusQuery, gameID, expectedVersion, status, winner, endedAt)
	if err != nil {
		r.logger.Error("Failed to finalize game status", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to finalize game %s: %w", gameID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyMissedUpdate(ctx, querier, gameID, logFields)
	}
	r.logger.Info("Game finalized", logFields...)
	return nil
}

// classifyMissedUpdate distinguishes a missing record from a version
// mismatch after a zero-row update.
func (r *pgGameRepository) classifyMissedUpdate(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, logFields []zap.Field) error {
	var exists bool
	if err := querier.QueryRow(ctx, gameExistsQuery, gameID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check game existence after missed update", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to check game %s after missed update: %w", gameID, err)
	}
	if !exists {
		r.logger.Warn("Game not found on versioned update", logFields...)
		return models.ErrGameNotFound
	}
	r.logger.Warn("Versioned update lost the race", logFields...)
	return models.ErrStoreConflict
}

// MarkStaleActiveAsAbandoned abandons active games idle past the threshold.
func (r *pgGameRepository) MarkStaleActiveAsAbandoned(ctx context.Context, querier interfaces.DBTX, staleThreshold time.Duration) (int64, error) {
	if querier == nil {
		querier = r.db
	}
	thresholdTime := time.Now().UTC().Add(-staleThreshold)
	logFields := []zap.Field{
		zap.Duration("staleThreshold", staleThreshold),
		zap.Time("thresholdTime", thresholdTime),
	}
	r.logger.Info("Marking stale active games as abandoned", logFields...)

	cmdTag, err := querier.Exec(ctx, markStaleAbandonedQuery, models.GameStatusAbandoned, models.GameStatusActive, thresholdTime)
	if err != nil {
		r.logger.Error("Failed to mark stale games", append(logFields, zap.Error(err))...)
		return 0, fmt.Errorf("failed to mark stale games: %w", err)
	}

	affected := cmdTag.RowsAffected()
	r.logger.Info("Finished marking stale games", append(logFields, zap.Int64("updatedCount", affected))...)
	return affected, nil
}
