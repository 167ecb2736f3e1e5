// Package service implements the game state machine: every transition is a
// read-validate-mutate-commit cycle against the freshly fetched record, run
// inside one transaction with optimistic concurrency.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guesswho-server/internal/catalog"
	"guesswho-server/internal/deduction"
	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/messaging"
	"guesswho-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GameSeed is the externally prepared material for a new game. Target
// selection happens before the game reaches this service; the service only
// validates and persists.
type GameSeed struct {
	PlayerOneID       uuid.UUID
	PlayerTwoID       uuid.UUID
	PlayerOneTargetID uuid.UUID
	PlayerTwoTargetID uuid.UUID
	BoardMemberIDs    []uuid.UUID
	FirstTurn         uuid.UUID
}

// AskResult is the outcome of a committed (or idempotently replayed) ask.
type AskResult struct {
	Move     *models.Move `json:"move"`
	Answer   bool         `json:"answer"`
	NextTurn uuid.UUID    `json:"nextTurn"`
}

// GuessResult is the outcome of a committed guess.
type GuessResult struct {
	Correct  bool          `json:"correct"`
	GameOver bool          `json:"gameOver"`
	Winner   uuid.NullUUID `json:"winner,omitempty"`
}

// GameService owns the authoritative game record and its transitions.
type GameService interface {
	CreateGame(ctx context.Context, creatorID uuid.UUID, seed GameSeed) (*models.Game, error)
	GetGame(ctx context.Context, playerID, gameID uuid.UUID) (*models.Game, error)
	ListGames(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]*models.Game, error)
	AskQuestion(ctx context.Context, playerID uuid.UUID, playerName string, gameID uuid.UUID, questionID string) (*AskResult, error)
	MakeGuess(ctx context.Context, playerID, gameID, memberID uuid.UUID) (*GuessResult, error)
	AbandonGame(ctx context.Context, playerID, gameID uuid.UUID) (*models.Game, error)
	Deduction(ctx context.Context, playerID, gameID uuid.UUID, audit bool) (*deduction.Result, error)
	SuggestQuestions(ctx context.Context, playerID, gameID uuid.UUID, limit int) ([]deduction.Suggestion, error)
	SweepStaleGames(ctx context.Context, threshold time.Duration) (int64, error)
}

type gameService struct {
	txManager  interfaces.TxManager
	gameRepo   interfaces.GameRepository
	playerRepo interfaces.PlayerRepository
	memberRepo interfaces.MemberRepository
	cache      interfaces.GameCache
	publisher  messaging.GameUpdatePublisher
	catalog    *catalog.Catalog
	logger     *zap.Logger
}

// NewGameService wires the game service.
func NewGameService(
	txManager interfaces.TxManager,
	gameRepo interfaces.GameRepository,
	playerRepo interfaces.PlayerRepository,
	memberRepo interfaces.MemberRepository,
	cache interfaces.GameCache,
	publisher messaging.GameUpdatePublisher,
	cat *catalog.Catalog,
	logger *zap.Logger,
) GameService {
	return &gameService{
		txManager:  txManager,
		gameRepo:   gameRepo,
		playerRepo: playerRepo,
		memberRepo: memberRepo,
		cache:      cache,
		publisher:  publisher,
		catalog:    cat,
		logger:     logger.Named("GameService"),
	}
}

// CreateGame validates the seed and persists the new game record.
func (s *gameService) CreateGame(ctx context.Context, creatorID uuid.UUID, seed GameSeed) (*models.Game, error) {
	if err := s.validateSeed(ctx, creatorID, &seed); err != nil {
		return nil, err
	}

	game := &models.Game{
		PlayerOneID:       seed.PlayerOneID,
		PlayerTwoID:       seed.PlayerTwoID,
		PlayerOneTargetID: seed.PlayerOneTargetID,
		PlayerTwoTargetID: seed.PlayerTwoTargetID,
		BoardMemberIDs:    seed.BoardMemberIDs,
		CurrentTurn:       seed.FirstTurn,
		Moves:             []models.Move{},
	}
	if err := s.gameRepo.Create(ctx, nil, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	s.logger.Info("Game created",
		zap.Stringer("gameID", game.ID),
		zap.Stringer("creatorID", creatorID))
	s.publishUpdate(game, nil)
	return game, nil
}

func (s *gameService) validateSeed(ctx context.Context, creatorID uuid.UUID, seed *GameSeed) error {
	if seed.PlayerOneID == uuid.Nil || seed.PlayerTwoID == uuid.Nil {
		return fmt.Errorf("%w: both players are required", models.ErrInvalidSeed)
	}
	if seed.PlayerOneID == seed.PlayerTwoID {
		return fmt.Errorf("%w: players must be distinct", models.ErrInvalidSeed)
	}
	if creatorID != seed.PlayerOneID && creatorID != seed.PlayerTwoID {
		return models.ErrUnauthorized
	}
	if n := len(seed.BoardMemberIDs); n < models.MinBoardSize || n > models.MaxBoardSize {
		return fmt.Errorf("%w: board must have %d..%d members, got %d",
			models.ErrInvalidSeed, models.MinBoardSize, models.MaxBoardSize, n)
	}
	seen := make(map[uuid.UUID]struct{}, len(seed.BoardMemberIDs))
	for _, id := range seed.BoardMemberIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate board member %s", models.ErrInvalidSeed, id)
		}
		seen[id] = struct{}{}
	}
	if _, ok := seen[seed.PlayerOneTargetID]; !ok {
		return fmt.Errorf("%w: player one target is not on the board", models.ErrInvalidSeed)
	}
	if _, ok := seen[seed.PlayerTwoTargetID]; !ok {
		return fmt.Errorf("%w: player two target is not on the board", models.ErrInvalidSeed)
	}
	if seed.FirstTurn != seed.PlayerOneID && seed.FirstTurn != seed.PlayerTwoID {
		return fmt.Errorf("%w: first turn must belong to a participant", models.ErrInvalidSeed)
	}

	// All referenced players and members must exist.
	for _, pid := range []uuid.UUID{seed.PlayerOneID, seed.PlayerTwoID} {
		if _, err := s.playerRepo.GetByID(ctx, nil, pid); err != nil {
			if errors.Is(err, models.ErrProfileNotFound) {
				return fmt.Errorf("%w: player %s does not exist", models.ErrInvalidSeed, pid)
			}
			return err
		}
	}
	members, err := s.memberRepo.ListByIDs(ctx, nil, seed.BoardMemberIDs)
	if err != nil {
		return fmt.Errorf("failed to verify board members: %w", err)
	}
	if len(members) != len(seed.BoardMemberIDs) {
		return fmt.Errorf("%w: %d board members are unknown",
			models.ErrInvalidSeed, len(seed.BoardMemberIDs)-len(members))
	}
	return nil
}

// GetGame returns the game for a participant, board resolved. Reads go
// through the cache; the cache never gates anything, a failure just means a
// store read.
func (s *gameService) GetGame(ctx context.Context, playerID, gameID uuid.UUID) (*models.Game, error) {
	game, err := s.cache.Get(ctx, gameID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("Cache read failed, falling back to store",
				zap.Stringer("gameID", gameID), zap.Error(err))
		}
		game, err = s.gameRepo.GetByID(ctx, nil, gameID)
		if err != nil {
			return nil, err
		}
		if cacheErr := s.cache.Set(ctx, game); cacheErr != nil {
			s.logger.Warn("Failed to populate cache", zap.Stringer("gameID", gameID), zap.Error(cacheErr))
		}
	}

	if !game.IsParticipant(playerID) {
		return nil, models.ErrUnauthorized
	}

	if len(game.Board) == 0 {
		board, err := s.memberRepo.ListByIDs(ctx, nil, game.BoardMemberIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve board for game %s: %w", gameID, err)
		}
		game.Board = board
	}
	return game, nil
}

// ListGames lists the player's games, newest activity first. Moves and
// boards are not loaded.
func (s *gameService) ListGames(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]*models.Game, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.gameRepo.ListByPlayer(ctx, nil, playerID, limit, offset)
}

// AskQuestion resolves the question against the asker's target and commits
// the move and turn flip atomically. Preconditions are re-validated against
// the record fetched inside the transaction, never against a cached copy.
func (s *gameService) AskQuestion(ctx context.Context, playerID uuid.UUID, playerName string, gameID uuid.UUID, questionID string) (*AskResult, error) {
	q, err := s.catalog.Question(questionID)
	if err != nil {
		return nil, err
	}

	var result *AskResult
	var updated *models.Game
	err = s.txManager.WithTx(ctx, func(tx interfaces.DBTX) error {
		game, err := s.gameRepo.GetByID(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := validateTurn(game, playerID); err != nil {
			// A lost response followed by a retry lands here with the turn
			// already flipped; detect the recorded move instead of failing.
			if replay, ok := replayedAsk(game, playerID, q.ID); ok && errors.Is(err, models.ErrNotYourTurn) {
				s.logger.Info("Idempotent ask retry detected",
					zap.Stringer("gameID", gameID), zap.String("questionID", q.ID))
				result = replay
				return nil
			}
			return err
		}

		target, err := s.resolveTarget(ctx, tx, game, playerID)
		if err != nil {
			return err
		}
		answer := catalog.ResolveAnswer(q, target)

		board, err := s.memberRepo.ListByIDs(ctx, tx, game.BoardMemberIDs)
		if err != nil {
			return fmt.Errorf("failed to load board for game %s: %w", gameID, err)
		}
		remaining := deduction.ComputeRemaining(board, game.OwnMoves(playerID), s.catalog, deduction.LiveView).Remaining
		eliminated := deduction.CountEliminatedBy(remaining, q, answer)

		opponent, _ := game.Opponent(playerID)
		move := &models.Move{
			MoveIndex:       len(game.Moves),
			PlayerID:        playerID,
			PlayerName:      playerName,
			QuestionID:      q.ID,
			QuestionText:    q.Text,
			Answer:          answer,
			EliminatedCount: &eliminated,
			AskedAt:         time.Now().UTC(),
		}
		if err := s.gameRepo.AppendMoveAndAdvanceTurn(ctx, tx, gameID, game.Version, move, opponent); err != nil {
			return err
		}

		game.Moves = append(game.Moves, *move)
		game.CurrentTurn = opponent
		game.Version++
		updated = game
		result = &AskResult{Move: move, Answer: answer, NextTurn: opponent}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated != nil {
		s.invalidateCache(gameID)
		s.publishUpdate(updated, result.Move)
	}
	return result, nil
}

// replayedAsk reports whether the last recorded move is exactly the ask the
// caller is retrying, and rebuilds its result if so.
func replayedAsk(game *models.Game, playerID uuid.UUID, questionID string) (*AskResult, bool) {
	if len(game.Moves) == 0 {
		return nil, false
	}
	last := game.Moves[len(game.Moves)-1]
	if last.PlayerID != playerID || last.QuestionID != questionID {
		return nil, false
	}
	move := last
	return &AskResult{Move: &move, Answer: move.Answer, NextTurn: game.CurrentTurn}, true
}

// MakeGuess checks the guess against the guesser's target. Correct ends the
// game; incorrect passes the turn.
func (s *gameService) MakeGuess(ctx context.Context, playerID, gameID, memberID uuid.UUID) (*GuessResult, error) {
	var result *GuessResult
	var updated *models.Game
	err := s.txManager.WithTx(ctx, func(tx interfaces.DBTX) error {
		game, err := s.gameRepo.GetByID(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := validateTurn(game, playerID); err != nil {
			return err
		}
		if !containsID(game.BoardMemberIDs, memberID) {
			return fmt.Errorf("%w: guessed member is not on the board", models.ErrBadRequest)
		}

		targetID, ok := game.TargetFor(playerID)
		if !ok {
			return models.ErrUnauthorized
		}
		now := time.Now().UTC()

		if memberID == targetID {
			winner := uuid.NullUUID{UUID: playerID, Valid: true}
			if err := s.gameRepo.FinalizeStatus(ctx, tx, gameID, game.Version, models.GameStatusCompleted, winner, now); err != nil {
				return err
			}
			game.Status = models.GameStatusCompleted
			game.WinnerID = winner
			game.EndedAt = &now
			game.Version++
			result = &GuessResult{Correct: true, GameOver: true, Winner: winner}
		} else {
			opponent, _ := game.Opponent(playerID)
			if err := s.gameRepo.AdvanceTurn(ctx, tx, gameID, game.Version, opponent); err != nil {
				return err
			}
			game.CurrentTurn = opponent
			game.Version++
			result = &GuessResult{Correct: false, GameOver: false}
		}
		updated = game
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(gameID)
	s.publishUpdate(updated, nil)
	return result, nil
}

// AbandonGame moves an active game to abandoned. No winner is assigned.
func (s *gameService) AbandonGame(ctx context.Context, playerID, gameID uuid.UUID) (*models.Game, error) {
	var updated *models.Game
	err := s.txManager.WithTx(ctx, func(tx interfaces.DBTX) error {
		game, err := s.gameRepo.GetByID(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if !game.IsParticipant(playerID) {
			return models.ErrUnauthorized
		}
		if game.Status != models.GameStatusActive {
			return models.ErrGameNotActive
		}
		now := time.Now().UTC()
		if err := s.gameRepo.FinalizeStatus(ctx, tx, gameID, game.Version, models.GameStatusAbandoned, uuid.NullUUID{}, now); err != nil {
			return err
		}
		game.Status = models.GameStatusAbandoned
		game.EndedAt = &now
		game.Version++
		updated = game
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(gameID)
	s.publishUpdate(updated, nil)
	return updated, nil
}

// Deduction recomputes the viewer's remaining-candidate set from their own
// moves. audit selects the full-trail presentation.
func (s *gameService) Deduction(ctx context.Context, playerID, gameID uuid.UUID, audit bool) (*deduction.Result, error) {
	game, err := s.GetGame(ctx, playerID, gameID)
	if err != nil {
		return nil, err
	}
	mode := deduction.LiveView
	if audit {
		mode = deduction.AuditView
	}
	return deduction.ComputeRemaining(game.Board, game.OwnMoves(playerID), s.catalog, mode), nil
}

// SuggestQuestions ranks unasked questions for the viewer by split quality.
func (s *gameService) SuggestQuestions(ctx context.Context, playerID, gameID uuid.UUID, limit int) ([]deduction.Suggestion, error) {
	game, err := s.GetGame(ctx, playerID, gameID)
	if err != nil {
		return nil, err
	}
	ownMoves := game.OwnMoves(playerID)
	remaining := deduction.ComputeRemaining(game.Board, ownMoves, s.catalog, deduction.LiveView).Remaining
	suggestions := deduction.Rank(s.catalog, remaining, deduction.AskedQuestionIDs(ownMoves))
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// SweepStaleGames abandons active games idle past the threshold.
func (s *gameService) SweepStaleGames(ctx context.Context, threshold time.Duration) (int64, error) {
	return s.gameRepo.MarkStaleActiveAsAbandoned(ctx, nil, threshold)
}

// validateTurn runs the shared ask/guess preconditions in taxonomy order.
func validateTurn(game *models.Game, playerID uuid.UUID) error {
	if !game.IsParticipant(playerID) {
		return models.ErrUnauthorized
	}
	if game.Status != models.GameStatusActive {
		return models.ErrGameNotActive
	}
	if game.CurrentTurn != playerID {
		return models.ErrNotYourTurn
	}
	return nil
}

// resolveTarget loads the candidate the player is trying to guess. A target
// missing from the directory is a data-integrity fault, not a user error.
func (s *gameService) resolveTarget(ctx context.Context, tx interfaces.DBTX, game *models.Game, playerID uuid.UUID) (*models.BoardMember, error) {
	targetID, ok := game.TargetFor(playerID)
	if !ok {
		return nil, models.ErrUnauthorized
	}
	if !containsID(game.BoardMemberIDs, targetID) {
		s.logger.Error("Target is not on the board",
			zap.Stringer("gameID", game.ID), zap.Stringer("targetID", targetID))
		return nil, models.ErrTargetNotFound
	}
	target, err := s.memberRepo.GetByID(ctx, tx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Error("Target member missing from directory",
				zap.Stringer("gameID", game.ID), zap.Stringer("targetID", targetID))
			return nil, models.ErrTargetNotFound
		}
		return nil, err
	}
	return target, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// invalidateCache drops the cached projection after a committed transition.
// Failures are logged only; the cache is advisory.
func (s *gameService) invalidateCache(gameID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, gameID); err != nil {
		s.logger.Warn("Failed to invalidate game cache", zap.Stringer("gameID", gameID), zap.Error(err))
	}
}

// publishUpdate emits the change feed event. The feed is a read-only side
// channel, so publish failures never fail the transition.
func (s *gameService) publishUpdate(game *models.Game, lastMove *models.Move) {
	if game == nil {
		return
	}
	payload := models.GameUpdate{
		GameID:      game.ID.String(),
		PlayerOneID: game.PlayerOneID.String(),
		PlayerTwoID: game.PlayerTwoID.String(),
		Status:      game.Status,
		LastMove:    lastMove,
		UpdatedAt:   time.Now().UTC(),
	}
	if game.Status == models.GameStatusActive {
		payload.CurrentTurn = game.CurrentTurn.String()
	}
	if game.WinnerID.Valid {
		payload.WinnerID = game.WinnerID.UUID.String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishGameUpdate(ctx, payload); err != nil {
		s.logger.Warn("Failed to publish game update", zap.String("gameID", payload.GameID), zap.Error(err))
	}
}
