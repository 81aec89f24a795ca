package models

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	TaskStatusPending = "pending"
	TaskStatusRetry   = "retry"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

const (
	// DefaultSessionTTL session lifetime in seconds
	DefaultSessionTTL = 24 * 60 * 60

	// RateLimitRequests requests allowed per window per session
	RateLimitRequests = 60

	// RateLimitWindow rate-limit window in seconds
	RateLimitWindow = 60

	// WorkerQueueSize in-memory report queue capacity
	WorkerQueueSize = 256

	// TimeLayout wall-clock second-precision layout used at the API boundary
	TimeLayout = "2006-01-02 15:04:05"
)
