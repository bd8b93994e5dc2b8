// Package engine wraps the external transcoding engine behind a small
// capability contract: load once, stage files into a private working
// storage, execute an argv, read results back and observe log lines.
//
// The working storage is a single shared namespace keyed by fixed file
// names, so callers must hold the Slot for the whole write/exec/read
// sequence.
package engine

import "context"

// Engine 外部轉碼引擎
type Engine interface {
	Load(ctx context.Context, blobs []Blob) error
	WriteFile(ctx context.Context, name string, data []byte) error
	Exec(ctx context.Context, argv []string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	RemoveFile(ctx context.Context, name string) error
	Subscribe(buffer int) *LogSubscription
}

// Slot guards the engine working storage. Only one holder at a time.
type Slot interface {
	TryAcquire() (release func(), err error)
	Acquire(ctx context.Context) (release func(), err error)
}
