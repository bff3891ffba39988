package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"presence-service/internal/models"
)

type PersistenceMock struct {
	mock.Mock
}

func (m *PersistenceMock) SaveMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *PersistenceMock) SaveRoom(ctx context.Context, room models.RoomSummary) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *PersistenceMock) DeleteRoom(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *PersistenceMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	args := m.Called(ctx, routingKey, message, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, token string) (string, string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.String(1), args.Error(2)
}
