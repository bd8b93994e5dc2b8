package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"video_rotate_service/internal/rotate/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeMessageWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestKafkaResultWriter_Write(t *testing.T) {
	w := &fakeMessageWriter{}
	result := domain.JobResult{
		JobID:    "job-1",
		RunID:    "run-1",
		Status:   domain.JobDone,
		Download: &domain.DownloadRef{URL: "http://minio/x", FileName: "output.mp4"},
	}

	require.NoError(t, NewKafkaResultWriter(w).Write(context.Background(), result))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "job-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, "done", string(msg.Headers[0].Value))

	var got domain.JobResult
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, result, got)
}

func TestKafkaResultWriter_Error(t *testing.T) {
	boom := errors.New("leader not available")
	err := NewKafkaResultWriter(&fakeMessageWriter{err: boom}).Write(context.Background(), domain.JobResult{JobID: "x"})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, NopResultWriter{}.Write(context.Background(), domain.JobResult{}))
}
