package workers

import (
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHealthWorker_Sample(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)

	// Given three active sessions
	mockRegistry.EXPECT().Len().Return(3).Times(1)

	worker, err := NewHealthWorker(log, mockRegistry, time.Second)
	req.NoError(err)

	// When the process is sampled
	health, err := worker.Sample()

	// Then the session count and the process memory are reported
	req.NoError(err)
	req.Equal(3, health.Sessions)
	req.Positive(health.RSSBytes)
	req.GreaterOrEqual(health.CPUPercent, 0.0)
}

func TestHealthWorker_Run_StopsWithContext(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockRegistry.EXPECT().Len().Return(0).AnyTimes()

	worker, err := NewHealthWorker(log, mockRegistry, 10*time.Millisecond)
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
}
