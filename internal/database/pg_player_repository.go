package database

import (
	"context"
	"errors"
	"fmt"

	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	getPlayerByIDQuery = `
        SELECT id, external_id, display_name, created_at
        FROM players
        WHERE id = $1
    `
	getPlayerByExternalIDQuery = `
        SELECT id, external_id, display_name, created_at
        FROM players
        WHERE external_id = $1
    `
)

var _ interfaces.PlayerRepository = (*pgPlayerRepository)(nil)

type pgPlayerRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgPlayerRepository creates the PostgreSQL player repository.
func NewPgPlayerRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.PlayerRepository {
	return &pgPlayerRepository{
		db:     db,
		logger: logger.Named("PgPlayerRepo"),
	}
}

func (r *pgPlayerRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Player, error) {
	if querier == nil {
		querier = r.db
	}
	player := &models.Player{}
	if err := pgxscan.Get(ctx, querier, player, getPlayerByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Player not found by id", zap.Stringer("playerID", id))
			return nil, models.ErrProfileNotFound
		}
		r.logger.Error("Failed to get player by id", zap.Stringer("playerID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get player %s: %w", id, err)
	}
	return player, nil
}

// GetByExternalID resolves an authenticated identity to the player record.
func (r *pgPlayerRepository) GetByExternalID(ctx context.Context, querier interfaces.DBTX, externalID string) (*models.Player, error) {
	if querier == nil {
		querier = r.db
	}
	player := &models.Player{}
	if err := pgxscan.Get(ctx, querier, player, getPlayerByExternalIDQuery, externalID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Player not found by external id", zap.String("externalID", externalID))
			return nil, models.ErrProfileNotFound
		}
		r.logger.Error("Failed to get player by external id", zap.String("externalID", externalID), zap.Error(err))
		return nil, fmt.Errorf("failed to get player by external id %s: %w", externalID, err)
	}
	return player, nil
}
