package models

type contextKey string

// PlayerContextKey holds the authenticated *Player in the request context.
const PlayerContextKey contextKey = "player"
