package service

import (
	"context"
	"testing"
	"time"

	"guesswho-server/internal/catalog"
	"guesswho-server/internal/interfaces/mocks"
	msgmocks "guesswho-server/internal/messaging/mocks"
	"guesswho-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceMocks struct {
	tx         *mocks.TxManager
	gameRepo   *mocks.GameRepository
	playerRepo *mocks.PlayerRepository
	memberRepo *mocks.MemberRepository
	cache      *mocks.GameCache
	publisher  *msgmocks.GameUpdatePublisher
}

func (m *serviceMocks) assertExpectations(t *testing.T) {
	m.gameRepo.AssertExpectations(t)
	m.playerRepo.AssertExpectations(t)
	m.memberRepo.AssertExpectations(t)
	m.cache.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func serviceCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Category{{
		ID:    "skills",
		Title: "Skills",
		Questions: []catalog.Question{
			{ID: "q-knows-python", Text: "Knows Python?", AttributePath: "technicalSkills.knowsPython"},
			{ID: "q-knows-go", Text: "Knows Go?", AttributePath: "technicalSkills.knowsGo"},
		},
	}})
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T) (GameService, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		tx:         &mocks.TxManager{},
		gameRepo:   &mocks.GameRepository{},
		playerRepo: &mocks.PlayerRepository{},
		memberRepo: &mocks.MemberRepository{},
		cache:      &mocks.GameCache{},
		publisher:  &msgmocks.GameUpdatePublisher{},
	}
	svc := NewGameService(
		m.tx, m.gameRepo, m.playerRepo, m.memberRepo, m.cache, m.publisher,
		serviceCatalog(t), zap.NewNop())
	return svc, m
}

// gameFixture holds one active game with a full board where player one
// holds the turn.
type gameFixture struct {
	game    *models.Game
	board   []models.BoardMember
	p1, p2  uuid.UUID
	targets map[uuid.UUID]uuid.UUID
}

func newGameFixture(t *testing.T) *gameFixture {
	t.Helper()
	p1 := uuid.New()
	p2 := uuid.New()

	board := make([]models.BoardMember, 0, models.MinBoardSize)
	ids := make([]uuid.UUID, 0, models.MinBoardSize)
	for i := 0; i < models.MinBoardSize; i++ {
		m := models.BoardMember{
			ID:   uuid.New(),
			Name: "Member",
			Attributes: models.AttributeGroups{
				"technicalSkills": map[string]any{
					"knowsPython": i%2 == 0,
					"knowsGo":     i%4 == 0,
				},
			},
		}
		board = append(board, m)
		ids = append(ids, m.ID)
	}

	game := &models.Game{
		ID:                uuid.New(),
		Status:            models.GameStatusActive,
		PlayerOneID:       p1,
		PlayerTwoID:       p2,
		PlayerOneTargetID: board[0].ID,
		PlayerTwoTargetID: board[1].ID,
		BoardMemberIDs:    ids,
		CurrentTurn:       p1,
		Version:           3,
		StartedAt:         time.Now().UTC(),
		LastActivityAt:    time.Now().UTC(),
		Moves:             []models.Move{},
	}
	return &gameFixture{
		game:  game,
		board: board,
		p1:    p1,
		p2:    p2,
		targets: map[uuid.UUID]uuid.UUID{
			p1: board[0].ID,
			p2: board[1].ID,
		},
	}
}

func TestAskQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path flips the turn and records the move", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		target := fx.board[0] // knowsPython = true

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.memberRepo.On("GetByID", mock.Anything, mock.Anything, target.ID).Return(&target, nil).Once()
		m.memberRepo.On("ListByIDs", mock.Anything, mock.Anything, fx.game.BoardMemberIDs).Return(fx.board, nil).Once()
		m.gameRepo.On("AppendMoveAndAdvanceTurn", mock.Anything, mock.Anything, fx.game.ID, int64(3),
			mock.MatchedBy(func(mv *models.Move) bool {
				return mv.MoveIndex == 0 && mv.PlayerID == fx.p1 && mv.QuestionID == "q-knows-python" && mv.Answer
			}), fx.p2).Return(nil).Once()
		m.cache.On("Invalidate", mock.Anything, fx.game.ID).Return(nil).Once()
		m.publisher.On("PublishGameUpdate", mock.Anything, mock.Anything).Return(nil).Once()

		res, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "q-knows-python")
		require.NoError(t, err)
		assert.True(t, res.Answer)
		assert.Equal(t, fx.p2, res.NextTurn)
		require.NotNil(t, res.Move.EliminatedCount)
		// Half the board answers "no" and is knocked out by a "yes".
		assert.Equal(t, models.MinBoardSize/2, *res.Move.EliminatedCount)
		m.assertExpectations(t)
	})

	t.Run("composite alias resolves to the same question", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		target := fx.board[0]

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.memberRepo.On("GetByID", mock.Anything, mock.Anything, target.ID).Return(&target, nil).Once()
		m.memberRepo.On("ListByIDs", mock.Anything, mock.Anything, fx.game.BoardMemberIDs).Return(fx.board, nil).Once()
		m.gameRepo.On("AppendMoveAndAdvanceTurn", mock.Anything, mock.Anything, fx.game.ID, int64(3),
			mock.MatchedBy(func(mv *models.Move) bool { return mv.QuestionID == "q-knows-python" }),
			fx.p2).Return(nil).Once()
		m.cache.On("Invalidate", mock.Anything, fx.game.ID).Return(nil).Once()
		m.publisher.On("PublishGameUpdate", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "skills:0")
		require.NoError(t, err)
		m.assertExpectations(t)
	})

	t.Run("unknown question fails before any store access", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		_, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "skills:99")
		assert.ErrorIs(t, err, models.ErrQuestionNotFound)
		m.assertExpectations(t)
	})

	t.Run("not your turn", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.AskQuestion(ctx, fx.p2, "Player Two", fx.game.ID, "q-knows-python")
		assert.ErrorIs(t, err, models.ErrNotYourTurn)
		m.assertExpectations(t)
	})

	t.Run("idempotent retry returns the recorded move", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		// The previous attempt committed: turn already flipped, move recorded.
		count := 8
		fx.game.CurrentTurn = fx.p2
		fx.game.Moves = []models.Move{{
			MoveIndex:       0,
			PlayerID:        fx.p1,
			QuestionID:      "q-knows-python",
			QuestionText:    "Knows Python?",
			Answer:          true,
			EliminatedCount: &count,
		}}

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		res, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "q-knows-python")
		require.NoError(t, err)
		assert.True(t, res.Answer)
		assert.Equal(t, fx.p2, res.NextTurn)
		assert.Equal(t, 0, res.Move.MoveIndex)
		// No append, no cache invalidation, no publish.
		m.assertExpectations(t)
	})

	t.Run("game not active", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		fx.game.Status = models.GameStatusCompleted

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "q-knows-python")
		assert.ErrorIs(t, err, models.ErrGameNotActive)
		m.assertExpectations(t)
	})

	t.Run("non-participant is unauthorized", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.AskQuestion(ctx, uuid.New(), "Stranger", fx.game.ID, "q-knows-python")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		m.assertExpectations(t)
	})

	t.Run("version conflict propagates", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		target := fx.board[0]

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.memberRepo.On("GetByID", mock.Anything, mock.Anything, target.ID).Return(&target, nil).Once()
		m.memberRepo.On("ListByIDs", mock.Anything, mock.Anything, fx.game.BoardMemberIDs).Return(fx.board, nil).Once()
		m.gameRepo.On("AppendMoveAndAdvanceTurn", mock.Anything, mock.Anything, fx.game.ID, int64(3),
			mock.Anything, fx.p2).Return(models.ErrStoreConflict).Once()

		_, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "q-knows-python")
		assert.ErrorIs(t, err, models.ErrStoreConflict)
		m.assertExpectations(t)
	})

	t.Run("missing target is a data integrity fault", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.memberRepo.On("GetByID", mock.Anything, mock.Anything, fx.board[0].ID).
			Return(nil, models.ErrNotFound).Once()

		_, err := svc.AskQuestion(ctx, fx.p1, "Player One", fx.game.ID, "q-knows-python")
		assert.ErrorIs(t, err, models.ErrTargetNotFound)
		m.assertExpectations(t)
	})
}

func TestMakeGuess(t *testing.T) {
	ctx := context.Background()

	t.Run("correct guess completes the game", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.gameRepo.On("FinalizeStatus", mock.Anything, mock.Anything, fx.game.ID, int64(3),
			models.GameStatusCompleted, uuid.NullUUID{UUID: fx.p1, Valid: true}, mock.Anything).Return(nil).Once()
		m.cache.On("Invalidate", mock.Anything, fx.game.ID).Return(nil).Once()
		m.publisher.On("PublishGameUpdate", mock.Anything, mock.Anything).Return(nil).Once()

		res, err := svc.MakeGuess(ctx, fx.p1, fx.game.ID, fx.targets[fx.p1])
		require.NoError(t, err)
		assert.True(t, res.Correct)
		assert.True(t, res.GameOver)
		assert.Equal(t, fx.p1, res.Winner.UUID)
		m.assertExpectations(t)
	})

	t.Run("incorrect guess passes the turn", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.gameRepo.On("AdvanceTurn", mock.Anything, mock.Anything, fx.game.ID, int64(3), fx.p2).Return(nil).Once()
		m.cache.On("Invalidate", mock.Anything, fx.game.ID).Return(nil).Once()
		m.publisher.On("PublishGameUpdate", mock.Anything, mock.Anything).Return(nil).Once()

		// Guessing the opponent's target, which is wrong for player one.
		res, err := svc.MakeGuess(ctx, fx.p1, fx.game.ID, fx.targets[fx.p2])
		require.NoError(t, err)
		assert.False(t, res.Correct)
		assert.False(t, res.GameOver)
		assert.False(t, res.Winner.Valid)
		m.assertExpectations(t)
	})

	t.Run("guess off the board is rejected", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.MakeGuess(ctx, fx.p1, fx.game.ID, uuid.New())
		assert.ErrorIs(t, err, models.ErrBadRequest)
		m.assertExpectations(t)
	})

	t.Run("not your turn", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.MakeGuess(ctx, fx.p2, fx.game.ID, fx.targets[fx.p2])
		assert.ErrorIs(t, err, models.ErrNotYourTurn)
		m.assertExpectations(t)
	})
}

func TestAbandonGame(t *testing.T) {
	ctx := context.Background()

	t.Run("participant abandons without a winner", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.gameRepo.On("FinalizeStatus", mock.Anything, mock.Anything, fx.game.ID, int64(3),
			models.GameStatusAbandoned, uuid.NullUUID{}, mock.Anything).Return(nil).Once()
		m.cache.On("Invalidate", mock.Anything, fx.game.ID).Return(nil).Once()
		m.publisher.On("PublishGameUpdate", mock.Anything, mock.Anything).Return(nil).Once()

		// Either participant may abandon, turn does not matter.
		game, err := svc.AbandonGame(ctx, fx.p2, fx.game.ID)
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusAbandoned, game.Status)
		assert.False(t, game.WinnerID.Valid)
		require.NotNil(t, game.EndedAt)
		m.assertExpectations(t)
	})

	t.Run("terminal game cannot be abandoned", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		fx.game.Status = models.GameStatusAbandoned

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.AbandonGame(ctx, fx.p1, fx.game.ID)
		assert.ErrorIs(t, err, models.ErrGameNotActive)
		m.assertExpectations(t)
	})

	t.Run("non-participant is unauthorized", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.AbandonGame(ctx, uuid.New(), fx.game.ID)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		m.assertExpectations(t)
	})
}

func TestGetGame(t *testing.T) {
	ctx := context.Background()

	t.Run("cache miss falls back to the store and populates", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.cache.On("Get", mock.Anything, fx.game.ID).Return(nil, models.ErrNotFound).Once()
		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.cache.On("Set", mock.Anything, fx.game).Return(nil).Once()
		m.memberRepo.On("ListByIDs", mock.Anything, mock.Anything, fx.game.BoardMemberIDs).Return(fx.board, nil).Once()

		game, err := svc.GetGame(ctx, fx.p1, fx.game.ID)
		require.NoError(t, err)
		assert.Len(t, game.Board, models.MinBoardSize)
		m.assertExpectations(t)
	})

	t.Run("cache hit still checks participation", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		m.cache.On("Get", mock.Anything, fx.game.ID).Return(fx.game, nil).Once()

		_, err := svc.GetGame(ctx, uuid.New(), fx.game.ID)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		m.assertExpectations(t)
	})

	t.Run("missing game", func(t *testing.T) {
		svc, m := newTestService(t)
		gameID := uuid.New()

		m.cache.On("Get", mock.Anything, gameID).Return(nil, models.ErrNotFound).Once()
		m.gameRepo.On("GetByID", mock.Anything, mock.Anything, gameID).Return(nil, models.ErrGameNotFound).Once()

		_, err := svc.GetGame(ctx, uuid.New(), gameID)
		assert.ErrorIs(t, err, models.ErrGameNotFound)
		m.assertExpectations(t)
	})
}

func TestCreateGame(t *testing.T) {
	ctx := context.Background()

	validSeed := func(fx *gameFixture) GameSeed {
		return GameSeed{
			PlayerOneID:       fx.p1,
			PlayerTwoID:       fx.p2,
			PlayerOneTargetID: fx.board[0].ID,
			PlayerTwoTargetID: fx.board[1].ID,
			BoardMemberIDs:    fx.game.BoardMemberIDs,
			FirstTurn:         fx.p1,
		}
	}

	t.Run("valid seed creates the game", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		seed := validSeed(fx)

		m.playerRepo.On("GetByID", mock.Anything, mock.Anything, fx.p1).Return(&models.Player{ID: fx.p1}, nil).Once()
		m.playerRepo.On("GetByID", mock.Anything, mock.Anything, fx.p2).Return(&models.Player{ID: fx.p2}, nil).Once()
		m.memberRepo.On("ListByIDs", mock.Anything, mock.Anything, seed.BoardMemberIDs).Return(fx.board, nil).Once()
		m.gameRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(g *models.Game) bool {
			return g.CurrentTurn == fx.p1 && len(g.BoardMemberIDs) == models.MinBoardSize
		})).Return(nil).Once()
		m.publisher.On("PublishGameUpdate", mock.Anything, mock.Anything).Return(nil).Once()

		game, err := svc.CreateGame(ctx, fx.p1, seed)
		require.NoError(t, err)
		assert.Equal(t, fx.p1, game.CurrentTurn)
		m.assertExpectations(t)
	})

	t.Run("board too small", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		seed := validSeed(fx)
		seed.BoardMemberIDs = seed.BoardMemberIDs[:models.MinBoardSize-1]

		_, err := svc.CreateGame(ctx, fx.p1, seed)
		assert.ErrorIs(t, err, models.ErrInvalidSeed)
		m.assertExpectations(t)
	})

	t.Run("duplicate board member", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		seed := validSeed(fx)
		seed.BoardMemberIDs = append([]uuid.UUID{}, seed.BoardMemberIDs...)
		seed.BoardMemberIDs[1] = seed.BoardMemberIDs[0]

		_, err := svc.CreateGame(ctx, fx.p1, seed)
		assert.ErrorIs(t, err, models.ErrInvalidSeed)
		m.assertExpectations(t)
	})

	t.Run("target off the board", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		seed := validSeed(fx)
		seed.PlayerTwoTargetID = uuid.New()

		_, err := svc.CreateGame(ctx, fx.p1, seed)
		assert.ErrorIs(t, err, models.ErrInvalidSeed)
		m.assertExpectations(t)
	})

	t.Run("identical players", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		seed := validSeed(fx)
		seed.PlayerTwoID = seed.PlayerOneID

		_, err := svc.CreateGame(ctx, fx.p1, seed)
		assert.ErrorIs(t, err, models.ErrInvalidSeed)
		m.assertExpectations(t)
	})

	t.Run("first turn must be a participant", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		seed := validSeed(fx)
		seed.FirstTurn = uuid.New()

		_, err := svc.CreateGame(ctx, fx.p1, seed)
		assert.ErrorIs(t, err, models.ErrInvalidSeed)
		m.assertExpectations(t)
	})

	t.Run("creator must participate", func(t *testing.T) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)

		_, err := svc.CreateGame(ctx, uuid.New(), validSeed(fx))
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		m.assertExpectations(t)
	})
}

func TestDeductionAndSuggestions(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (GameService, *serviceMocks, *gameFixture) {
		svc, m := newTestService(t)
		fx := newGameFixture(t)
		m.cache.On("Get", mock.Anything, fx.game.ID).Return(fx.game, nil).Once()
		m.memberRepo.On("ListByIDs", mock.Anything, mock.Anything, fx.game.BoardMemberIDs).Return(fx.board, nil).Once()
		return svc, m, fx
	}

	t.Run("deduction reflects own moves only", func(t *testing.T) {
		svc, m, fx := setup(t)
		fx.game.Moves = []models.Move{
			{MoveIndex: 0, PlayerID: fx.p1, QuestionID: "q-knows-python", Answer: true},
			// Opponent's move must not affect player one's view.
			{MoveIndex: 1, PlayerID: fx.p2, QuestionID: "q-knows-go", Answer: true},
		}

		res, err := svc.Deduction(ctx, fx.p1, fx.game.ID, false)
		require.NoError(t, err)
		// Half the board knows Python.
		assert.Len(t, res.Remaining, models.MinBoardSize/2)
		m.assertExpectations(t)
	})

	t.Run("suggestions exclude asked questions", func(t *testing.T) {
		svc, m, fx := setup(t)
		fx.game.Moves = []models.Move{
			{MoveIndex: 0, PlayerID: fx.p1, QuestionID: "q-knows-python", Answer: true},
		}

		suggestions, err := svc.SuggestQuestions(ctx, fx.p1, fx.game.ID, 0)
		require.NoError(t, err)
		require.Len(t, suggestions, 1)
		assert.Equal(t, "q-knows-go", suggestions[0].QuestionID)
		m.assertExpectations(t)
	})

	t.Run("suggestion limit is applied", func(t *testing.T) {
		svc, m, fx := setup(t)

		suggestions, err := svc.SuggestQuestions(ctx, fx.p1, fx.game.ID, 1)
		require.NoError(t, err)
		assert.Len(t, suggestions, 1)
		m.assertExpectations(t)
	})
}

func TestSweepStaleGames(t *testing.T) {
	svc, m := newTestService(t)

	m.gameRepo.On("MarkStaleActiveAsAbandoned", mock.Anything, mock.Anything, 72*time.Hour).
		Return(int64(4), nil).Once()

	n, err := svc.SweepStaleGames(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	m.assertExpectations(t)
}
