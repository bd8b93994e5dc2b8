package domain

import "time"

// Phase processing phase
type Phase string

const (
	// PhaseIdle nothing running
	PhaseIdle Phase = "idle"
	// PhaseProcessing a run is in flight
	PhaseProcessing Phase = "processing"
	// PhaseDone last run finished and was delivered
	PhaseDone Phase = "done"
)

// ProcessingState the single processing state owned by the orchestrator
type ProcessingState struct {
	Phase    Phase        `json:"phase"`
	Progress float64      `json:"progress"`
	RunID    string       `json:"run_id,omitempty"`
	Download *DownloadRef `json:"download,omitempty"`
}

// Processing phase helper
func (s ProcessingState) Processing() bool {
	return s.Phase == PhaseProcessing
}

// OutputArtifact 執行成功後的輸出
type OutputArtifact struct {
	Data        []byte
	ContentType string
	FileName    string
}

// NewOutputArtifact content type video/<ext>, name output.<ext>
func NewOutputArtifact(data []byte, ext string) OutputArtifact {
	return OutputArtifact{
		Data:        data,
		ContentType: "video/" + ext,
		FileName:    OutputFileName(ext),
	}
}

// DownloadRef 暫時性的下載位置
type DownloadRef struct {
	URL         string    `json:"url"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}
