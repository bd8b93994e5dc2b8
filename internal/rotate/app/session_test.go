package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SelectResolvesDuration(t *testing.T) {
	s := NewSession(fixedDuration(12.5), time.Second)

	_, ok := s.Source()
	assert.False(t, ok)

	<-s.Select("a.mp4", clip)
	src, ok := s.Source()
	require.True(t, ok)
	assert.Equal(t, "a.mp4", src.FileName)
	require.NotNil(t, src.Duration)
	assert.Equal(t, 12.5, *src.Duration)

	d, ok := s.Duration()
	assert.True(t, ok)
	assert.Equal(t, 12.5, d)

	// copies do not alias the session
	*src.Duration = 1
	d, _ = s.Duration()
	assert.Equal(t, 12.5, d)
}

func TestSession_StaleMetadataDropped(t *testing.T) {
	slow := make(chan struct{})
	extractor := MetadataExtractorFunc(func(_ context.Context, name string, _ []byte) (float64, error) {
		if name == "first.mp4" {
			<-slow
			return 100, nil
		}
		return 7, nil
	})
	s := NewSession(extractor, time.Second)

	first := s.Select("first.mp4", clip)
	<-s.Select("second.mp4", clip)
	close(slow)
	<-first

	src, ok := s.Source()
	require.True(t, ok)
	assert.Equal(t, "second.mp4", src.FileName)
	require.NotNil(t, src.Duration)
	assert.Equal(t, 7.0, *src.Duration)
}

func TestSession_MetadataFailure(t *testing.T) {
	s := NewSession(unknownDuration(), time.Second)
	<-s.Select("a.mp4", clip)

	src, ok := s.Source()
	require.True(t, ok)
	assert.Nil(t, src.Duration)
	assert.False(t, src.HasDuration())

	nilExtractor := NewSession(nil, 0)
	<-nilExtractor.Select("b.mp4", clip)
	_, ok = nilExtractor.Duration()
	assert.False(t, ok)
}

func TestSession_MetadataTimeout(t *testing.T) {
	extractor := MetadataExtractorFunc(func(ctx context.Context, _ string, _ []byte) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	s := NewSession(extractor, 20*time.Millisecond)

	select {
	case <-s.Select("a.mp4", clip):
	case <-time.After(2 * time.Second):
		t.Fatal("timeout was not applied")
	}
	_, ok := s.Duration()
	assert.False(t, ok)
}
