// Package mocks provides testify mocks for messaging interfaces.
package mocks

import (
	"context"

	"guesswho-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// GameUpdatePublisher is a mock of messaging.GameUpdatePublisher.
type GameUpdatePublisher struct {
	mock.Mock
}

func (m *GameUpdatePublisher) PublishGameUpdate(ctx context.Context, payload models.GameUpdate) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
