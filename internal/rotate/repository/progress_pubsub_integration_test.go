//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/database"
	"video_rotate_service/pkg/logger"
	testtool "video_rotate_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var redisAddr string

// **TestMain 啟動 Redis 容器**
func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start Redis container: %v", err)
	}
	redisAddr = fmt.Sprintf("%s:%s", host, port)
	fmt.Printf("✅ Redis running at %s\n", redisAddr)

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRedisPubSub_ProgressEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := database.NewRedisClient(ctx, database.RedisConnection{Addr: redisAddr})
	require.NoError(t, err)
	defer client.Close()

	pubsub := NewRedisPubSub(client)
	events := make(chan domain.ProgressEvent, 4)
	require.NoError(t, pubsub.Subscribe(ctx, "job-1", func(ev domain.ProgressEvent) { events <- ev }))

	// 其他 job 的事件不應收到
	require.NoError(t, pubsub.Publish(ctx, domain.ProgressEvent{JobID: "job-2"}))
	require.NoError(t, pubsub.Publish(ctx, domain.ProgressEvent{
		JobID: "job-1",
		State: domain.ProcessingState{Phase: domain.PhaseProcessing, Progress: 42, RunID: "run-1"},
	}))
	require.NoError(t, pubsub.Publish(ctx, domain.ProgressEvent{
		JobID:  "job-1",
		State:  domain.ProcessingState{Phase: domain.PhaseDone, Progress: 100, RunID: "run-1"},
		Status: domain.JobDone,
	}))

	var got []domain.ProgressEvent
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("progress events not received")
		}
	}
	assert.Equal(t, 42.0, got[0].State.Progress)
	assert.False(t, got[0].Terminal())
	assert.True(t, got[1].Terminal())
}
