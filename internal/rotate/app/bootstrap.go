package app

import (
	"fmt"
	"strings"
	"time"

	"video_rotate_service/internal/rotate/engine"
	"video_rotate_service/pkg/config"
	"video_rotate_service/pkg/database"
)

const defaultMetadataTimeout = 30 * time.Second

// Pipeline rotation components of one process
type Pipeline struct {
	Engine       *engine.FFmpegEngine
	Lifecycle    *Lifecycle
	Session      *Session
	State        *StateStore
	Orchestrator *Orchestrator
}

// NewPipeline wire engine, lifecycle, session, state and orchestrator.
// objects may be nil; it enables s3:// engine resources when set.
func NewPipeline(cfg config.EngineConfig, delivery Delivery, objects engine.ObjectReader) (*Pipeline, error) {
	ws, err := engine.NewWorkspace(cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	eng := engine.NewFFmpegEngine(cfg.FFmpegPath, ws)

	fetcher := engine.NewResourceFetcher()
	if objects != nil {
		fetcher.Register("s3", engine.ObjectGetter(objects))
	}
	specs := make([]engine.ResourceSpec, 0, len(cfg.Resources))
	for _, r := range cfg.Resources {
		specs = append(specs, engine.ResourceSpec{Name: r.Name, URL: r.URL, Digest: r.Digest})
	}

	timeout := cfg.MetadataTimeout
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}

	lifecycle := NewLifecycle(eng, fetcher, specs)
	session := NewSession(NewFFprobeExtractor(cfg.FFprobePath), timeout)
	state := NewStateStore()
	orchestrator := NewOrchestrator(lifecycle, session, state, ws, delivery, WithLogBuffer(cfg.LogBuffer))

	return &Pipeline{
		Engine:       eng,
		Lifecycle:    lifecycle,
		Session:      session,
		State:        state,
		Orchestrator: orchestrator,
	}, nil
}

// NewDelivery pick the delivery backend. memory is non-nil only in memory
// mode, where the HTTP layer must serve the download tokens.
func NewDelivery(cfg config.DeliveryConfig, objects database.MinIOClientRepo) (delivery Delivery, memory *MemoryDelivery, err error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "memory":
		memory = NewMemoryDelivery(cfg.PublicURL, cfg.TTL)
		return memory, memory, nil
	case "file":
		return NewFileDelivery(cfg.Dir), nil, nil
	case "minio":
		if objects == nil {
			return nil, nil, fmt.Errorf("delivery mode minio needs a minio connection")
		}
		return NewObjectDelivery(objects, cfg.TTL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown delivery mode %q", cfg.Mode)
	}
}
