package types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// GenerationAccepted is returned when generation was queued instead of run inline.
type GenerationAccepted struct {
	DealID    string `json:"dealId"`
	AttemptID string `json:"attemptId"`
	TaskID    string `json:"taskId"`
}

// DownloadResponse carries a presigned document URL.
type DownloadResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}
