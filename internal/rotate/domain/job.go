package domain

const (
	// QueueName definition queue name
	QueueName = "rotate"
	// OriginalPrefix MinIO prefix of uploaded originals
	OriginalPrefix = "original"
	// RotatedPrefix MinIO prefix of delivered outputs
	RotatedPrefix = "rotated"
)

// JobStatus definition job status
type JobStatus string

const (
	// JobQueued job published, waiting for the worker
	JobQueued JobStatus = "queued"
	// JobProcessing worker is running it
	JobProcessing JobStatus = "processing"
	// JobDone output delivered
	JobDone JobStatus = "done"
	// JobFailed run failed, state went back to idle
	JobFailed JobStatus = "failed"
)

// RotateJob 定義旋轉工作訊息
type RotateJob struct {
	JobID     string `json:"job_id"`
	ObjectKey string `json:"object_key"` // 原始檔在 MinIO 上的 object key
	FileName  string `json:"file_name"`
	Angle     int    `json:"angle"`
}

// ProgressEvent 經由 redis pub/sub 推送的進度
// Status is only set on the terminal event of a job.
type ProgressEvent struct {
	JobID  string          `json:"job_id"`
	State  ProcessingState `json:"state"`
	Status JobStatus       `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Terminal last event of a job
func (e ProgressEvent) Terminal() bool {
	return e.Status == JobDone || e.Status == JobFailed
}

// JobResult 工作結束後寫入 kafka
type JobResult struct {
	JobID    string       `json:"job_id"`
	RunID    string       `json:"run_id,omitempty"`
	Status   JobStatus    `json:"status"`
	Download *DownloadRef `json:"download,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// UploadJobReq usecase upload job request
type UploadJobReq struct {
	FileName    string
	ContentType string
	Data        []byte
	Angle       int
}

// UploadJobRes usecase upload job response
type UploadJobRes struct {
	Message string    `json:"message"`
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
}

// JobChannel redis channel of a job
func JobChannel(jobID string) string {
	return "rotate:job:" + jobID
}
