package unified

// BatchStatus is the unified five-state job status.
type BatchStatus string

const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchSucceeded BatchStatus = "succeeded"
	BatchFailed    BatchStatus = "failed"
	BatchCancelled BatchStatus = "cancelled"
)

// Terminal reports whether no further transition can occur.
func (s BatchStatus) Terminal() bool {
	return s == BatchSucceeded || s == BatchFailed || s == BatchCancelled
}

// RequestCounts tallies the requests of a batch job.
type RequestCounts struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// BatchJob is derived from a provider job record by the normalizer; nothing
// else constructs one.
type BatchJob struct {
	ID               string         `json:"id"`
	Object           string         `json:"object"`
	Endpoint         string         `json:"endpoint,omitempty"`
	Status           BatchStatus    `json:"status"`
	InputFileID      string         `json:"input_file_id,omitempty"`
	OutputFileID     string         `json:"output_file_id,omitempty"`
	ErrorFileID      string         `json:"error_file_id,omitempty"`
	CompletionWindow *string        `json:"completion_window"`
	CreatedAt        int64          `json:"created_at,omitempty"`
	InProgressAt     int64          `json:"in_progress_at,omitempty"`
	CompletedAt      int64          `json:"completed_at,omitempty"`
	FailedAt         int64          `json:"failed_at,omitempty"`
	CancelledAt      int64          `json:"cancelled_at,omitempty"`
	RequestCounts    RequestCounts  `json:"request_counts"`
	Errors           *BatchErrors   `json:"errors,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// BatchErrors wraps provider error objects in list form.
type BatchErrors struct {
	Object string `json:"object"`
	Data   []any  `json:"data"`
}

// BatchList is the unified list envelope.
type BatchList struct {
	Object  string     `json:"object"`
	Data    []BatchJob `json:"data"`
	FirstID string     `json:"first_id,omitempty"`
	LastID  string     `json:"last_id,omitempty"`
	HasMore bool       `json:"has_more"`
}

// FineTuneJob is the unified fine-tune record.
type FineTuneJob struct {
	ID             string      `json:"id"`
	Object         string      `json:"object"`
	Model          string      `json:"model,omitempty"`
	FineTunedModel string      `json:"fine_tuned_model,omitempty"`
	Status         BatchStatus `json:"status"`
	TrainingFile   string      `json:"training_file,omitempty"`
	ValidationFile string      `json:"validation_file,omitempty"`
	CreatedAt      int64       `json:"created_at,omitempty"`
	FinishedAt     int64       `json:"finished_at,omitempty"`
	Error          any         `json:"error,omitempty"`
}

// Logprob is one chosen token with its alternatives.
type Logprob struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	Bytes       []int        `json:"bytes"`
	TopLogprobs []TopLogprob `json:"top_logprobs,omitempty"`
}

// TopLogprob is one alternative candidate for a chosen token.
type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
	Bytes   []int   `json:"bytes"`
}
