package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found") // General not found
	ErrGameNotFound  = errors.New("game not found")
	ErrStoreConflict = errors.New("game record changed concurrently")

	// User & Authentication Errors
	ErrUnauthenticated = errors.New("unauthenticated") // No resolvable identity
	ErrProfileNotFound = errors.New("no player profile for this identity")
	ErrUnauthorized    = errors.New("unauthorized") // Actor is not a participant

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Game Transition Errors
	ErrNotYourTurn    = errors.New("not your turn")
	ErrGameNotActive  = errors.New("game is not active")
	ErrTargetNotFound = errors.New("target candidate missing from board") // Data-integrity fault
	ErrInvalidSeed    = errors.New("invalid game seed")

	// Catalog Errors
	ErrQuestionNotFound = errors.New("question not found")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)
