// Package mocks provides hand-written testify mocks for the repository
// interfaces used in service unit tests.
package mocks

import (
	"context"
	"time"

	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// GameRepository is a mock of interfaces.GameRepository.
type GameRepository struct {
	mock.Mock
}

func (m *GameRepository) Create(ctx context.Context, querier interfaces.DBTX, game *models.Game) error {
	args := m.Called(ctx, querier, game)
	return args.Error(0)
}

func (m *GameRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Game, error) {
	args := m.Called(ctx, querier, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *GameRepository) ListByPlayer(ctx context.Context, querier interfaces.DBTX, playerID uuid.UUID, limit, offset int) ([]*models.Game, error) {
	args := m.Called(ctx, querier, playerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *GameRepository) AppendMoveAndAdvanceTurn(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, move *models.Move, nextTurn uuid.UUID) error {
	args := m.Called(ctx, querier, gameID, expectedVersion, move, nextTurn)
	return args.Error(0)
}

func (m *GameRepository) AdvanceTurn(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, nextTurn uuid.UUID) error {
	args := m.Called(ctx, querier, gameID, expectedVersion, nextTurn)
	return args.Error(0)
}

func (m *GameRepository) FinalizeStatus(ctx context.Context, querier interfaces.DBTX, gameID uuid.UUID, expectedVersion int64, status models.GameStatus, winner uuid.NullUUID, endedAt time.Time) error {
	args := m.Called(ctx, querier, gameID, expectedVersion, status, winner, endedAt)
	return args.Error(0)
}

func (m *GameRepository) MarkStaleActiveAsAbandoned(ctx context.Context, querier interfaces.DBTX, staleThreshold time.Duration) (int64, error) {
	args := m.Called(ctx, querier, staleThreshold)
	return args.Get(0).(int64), args.Error(1)
}

// PlayerRepository is a mock of interfaces.PlayerRepository.
type PlayerRepository struct {
	mock.Mock
}

func (m *PlayerRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Player, error) {
	args := m.Called(ctx, querier, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

func (m *PlayerRepository) GetByExternalID(ctx context.Context, querier interfaces.DBTX, externalID string) (*models.Player, error) {
	args := m.Called(ctx, querier, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Player), args.Error(1)
}

// MemberRepository is a mock of interfaces.MemberRepository.
type MemberRepository struct {
	mock.Mock
}

func (m *MemberRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.BoardMember, error) {
	args := m.Called(ctx, querier, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BoardMember), args.Error(1)
}

func (m *MemberRepository) ListByIDs(ctx context.Context, querier interfaces.DBTX, ids []uuid.UUID) ([]models.BoardMember, error) {
	args := m.Called(ctx, querier, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BoardMember), args.Error(1)
}

// GameCache is a mock of interfaces.GameCache.
type GameCache struct {
	mock.Mock
}

func (m *GameCache) Get(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *GameCache) Set(ctx context.Context, game *models.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *GameCache) Invalidate(ctx context.Context, gameID uuid.UUID) error {
	args := m.Called(ctx, gameID)
	return args.Error(0)
}

// TxManager runs the callback immediately with a nil querier, standing in
// for a real transaction in unit tests.
type TxManager struct {
	// Err, when set, is returned without running the callback.
	Err error
}

func (m *TxManager) WithTx(ctx context.Context, fn func(q interfaces.DBTX) error) error {
	if m.Err != nil {
		return m.Err
	}
	return fn(nil)
}
