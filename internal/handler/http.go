// Package handler exposes the HTTP API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"guesswho-server/internal/catalog"
	"guesswho-server/internal/interfaces"
	"guesswho-server/internal/models"
	"guesswho-server/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// createGameRequest is the externally prepared game seed. Targets are chosen
// before the request reaches this service.
type createGameRequest struct {
	PlayerOneID       string   `json:"playerOneId" validate:"required,uuid4"`
	PlayerTwoID       string   `json:"playerTwoId" validate:"required,uuid4"`
	PlayerOneTargetID string   `json:"playerOneTargetId" validate:"required,uuid4"`
	PlayerTwoTargetID string   `json:"playerTwoTargetId" validate:"required,uuid4"`
	BoardMemberIDs    []string `json:"boardMemberIds" validate:"required,min=16,max=20,dive,uuid4"`
	FirstTurn         string   `json:"firstTurn" validate:"required,uuid4"`
}

// askQuestionRequest accepts either a stable question id or the positional
// category/index pair.
type askQuestionRequest struct {
	QuestionID    string `json:"questionId"`
	CategoryID    string `json:"categoryId"`
	QuestionIndex *int   `json:"questionIndex"`
}

type makeGuessRequest struct {
	MemberID string `json:"memberId" validate:"required,uuid4"`
}

// GameHandler serves the game API.
type GameHandler struct {
	service    service.GameService
	memberRepo interfaces.MemberRepository
	catalog    *catalog.Catalog
	logger     *zap.Logger
}

// NewGameHandler creates the handler.
func NewGameHandler(s service.GameService, memberRepo interfaces.MemberRepository, cat *catalog.Catalog, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		service:    s,
		memberRepo: memberRepo,
		catalog:    cat,
		logger:     logger.Named("GameHandler"),
	}
}

// RegisterRoutes mounts the API behind the auth middleware.
func (h *GameHandler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	gamesGroup := e.Group("/games", authMiddleware)
	{
		gamesGroup.POST("", h.createGame)
		gamesGroup.GET("", h.listGames)
		gamesGroup.GET("/:id", h.getGame)
		gamesGroup.POST("/:id/question", h.askQuestion)
		gamesGroup.POST("/:id/guess", h.makeGuess)
		gamesGroup.POST("/:id/abandon", h.abandonGame)
		gamesGroup.GET("/:id/deduction", h.getDeduction)
		gamesGroup.GET("/:id/suggestions", h.getSuggestions)
	}

	e.GET("/catalog", h.getCatalog)
	e.GET("/members/:id", h.getMember, authMiddleware)
}

// playerFromContext returns the authenticated player set by the auth
// middleware.
func playerFromContext(c echo.Context) (*models.Player, error) {
	val := c.Request().Context().Value(models.PlayerContextKey)
	player, ok := val.(*models.Player)
	if !ok || player == nil {
		return nil, models.ErrUnauthenticated
	}
	return player, nil
}

func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *GameHandler) createGame(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req createGameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}

	seed, err := seedFromRequest(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	game, err := h.service.CreateGame(c.Request().Context(), player.ID, *seed)
	if err != nil {
		return handleServiceError(c, err)
	}
	gamesCreatedTotal.Inc()
	return c.JSON(http.StatusCreated, game)
}

func seedFromRequest(req *createGameRequest) (*service.GameSeed, error) {
	seed := &service.GameSeed{}
	var err error
	if seed.PlayerOneID, err = uuid.Parse(req.PlayerOneID); err != nil {
		return nil, errors.New("invalid playerOneId")
	}
	if seed.PlayerTwoID, err = uuid.Parse(req.PlayerTwoID); err != nil {
		return nil, errors.New("invalid playerTwoId")
	}
	if seed.PlayerOneTargetID, err = uuid.Parse(req.PlayerOneTargetID); err != nil {
		return nil, errors.New("invalid playerOneTargetId")
	}
	if seed.PlayerTwoTargetID, err = uuid.Parse(req.PlayerTwoTargetID); err != nil {
		return nil, errors.New("invalid playerTwoTargetId")
	}
	if seed.FirstTurn, err = uuid.Parse(req.FirstTurn); err != nil {
		return nil, errors.New("invalid firstTurn")
	}
	seed.BoardMemberIDs = make([]uuid.UUID, 0, len(req.BoardMemberIDs))
	for _, raw := range req.BoardMemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("invalid board member id: " + raw)
		}
		seed.BoardMemberIDs = append(seed.BoardMemberIDs, id)
	}
	return seed, nil
}

func (h *GameHandler) listGames(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	games, err := h.service.ListGames(c.Request().Context(), player.ID, limit, offset)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, games)
}

func (h *GameHandler) getGame(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	gameID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	game, err := h.service.GetGame(c.Request().Context(), player.ID, gameID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, game)
}

func (h *GameHandler) askQuestion(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	gameID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req askQuestionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	questionID := req.QuestionID
	if questionID == "" {
		if req.CategoryID == "" || req.QuestionIndex == nil {
			return c.JSON(http.StatusBadRequest, APIError{Message: "questionId or categoryId+questionIndex is required"})
		}
		questionID = catalog.FormatQuestionID(req.CategoryID, *req.QuestionIndex)
	}

	result, err := h.service.AskQuestion(c.Request().Context(), player.ID, player.DisplayName, gameID, questionID)
	if err != nil {
		return handleServiceError(c, err)
	}
	questionsAskedTotal.Inc()
	return c.JSON(http.StatusOK, result)
}

func (h *GameHandler) makeGuess(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	gameID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req makeGuessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid memberId"})
	}

	result, err := h.service.MakeGuess(c.Request().Context(), player.ID, gameID, memberID)
	if err != nil {
		return handleServiceError(c, err)
	}
	outcome := "incorrect"
	if result.Correct {
		outcome = "correct"
	}
	guessesTotal.WithLabelValues(outcome).Inc()
	return c.JSON(http.StatusOK, result)
}

func (h *GameHandler) abandonGame(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	gameID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	game, err := h.service.AbandonGame(c.Request().Context(), player.ID, gameID)
	if err != nil {
		return handleServiceError(c, err)
	}
	gamesAbandonedTotal.Inc()
	return c.JSON(http.StatusOK, game)
}

func (h *GameHandler) getDeduction(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	gameID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	audit, _ := strconv.ParseBool(c.QueryParam("audit"))

	result, err := h.service.Deduction(c.Request().Context(), player.ID, gameID, audit)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *GameHandler) getSuggestions(c echo.Context) error {
	player, err := playerFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	gameID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	suggestions, err := h.service.SuggestQuestions(c.Request().Context(), player.ID, gameID, limit)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, suggestions)
}

func (h *GameHandler) getCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.Categories())
}

func (h *GameHandler) getMember(c echo.Context) error {
	memberID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	member, err := h.memberRepo.GetByID(c.Request().Context(), nil, memberID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, member)
}

// handleServiceError maps domain sentinels to HTTP statuses in one place.
func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		statusCode = http.StatusUnauthorized
		apiErr = APIError{Message: "Unauthorized"}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusForbidden
		apiErr = APIError{Message: "Forbidden: not a participant of this game"}
	case errors.Is(err, models.ErrNotYourTurn):
		statusCode = http.StatusForbidden
		apiErr = APIError{Message: "Forbidden: not your turn"}
	case errors.Is(err, models.ErrGameNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Game not found"}
	case errors.Is(err, models.ErrProfileNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Player profile not found"}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Resource not found"}
	case errors.Is(err, models.ErrQuestionNotFound):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrInvalidSeed):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrGameNotActive):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: "Game is not active"}
	case errors.Is(err, models.ErrStoreConflict):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: "Concurrent update detected, refetch and retry"}
	case errors.Is(err, models.ErrTargetNotFound):
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Game record is inconsistent"}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}
