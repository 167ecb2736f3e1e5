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
	getMemberByIDQuery = `
        SELECT id, name, attributes, created_at, updated_at
        FROM board_members
        WHERE id = $1
    `
	listMembersByIDsQuery = `
        SELECT id, name, attributes, created_at, updated_at
        FROM board_members
        WHERE id = ANY($1)
        ORDER BY name ASC
    `
)

var _ interfaces.MemberRepository = (*pgMemberRepository)(nil)

type pgMemberRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgMemberRepository creates the PostgreSQL board member repository.
// Member attributes live in a JSONB column so new attribute groups never
// need a schema change.
func NewPgMemberRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.MemberRepository {
	return &pgMemberRepository{
		db:     db,
		logger: logger.Named("PgMemberRepo"),
	}
}

func (r *pgMemberRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.BoardMember, error) {
	if querier == nil {
		querier = r.db
	}
	member := &models.BoardMember{}
	if err := pgxscan.Get(ctx, querier, member, getMemberByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Board member not found", zap.Stringer("memberID", id))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get board member", zap.Stringer("memberID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get board member %s: %w", id, err)
	}
	return member, nil
}

// ListByIDs loads the requested members. Missing ids are simply absent from
// the result, ordering is by name for stable board rendering.
func (r *pgMemberRepository) ListByIDs(ctx context.Context, querier interfaces.DBTX, ids []uuid.UUID) ([]models.BoardMember, error) {
	if querier == nil {
		querier = r.db
	}
	if len(ids) == 0 {
		return []models.BoardMember{}, nil
	}
	members := make([]models.BoardMember, 0, len(ids))
	if err := pgxscan.Select(ctx, querier, &members, listMembersByIDsQuery, ids); err != nil {
		r.logger.Error("Failed to list board members", zap.Int("requested", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to list board members: %w", err)
	}
	r.logger.Debug("Board members listed", zap.Int("requested", len(ids)), zap.Int("found", len(members)))
	return members, nil
}
