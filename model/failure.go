package model

import "time"

// FailureType distinguishes a shard that was aborted from one that continued.
type FailureType string

const (
	FailureTypeFull    FailureType = "FULL"
	FailureTypePartial FailureType = "PARTIAL"
)

// FailureSource is the likely origin of a failure.
type FailureSource string

const (
	FailureSourceApplication  FailureSource = "APPLICATION"
	FailureSourceRunner       FailureSource = "RUNNER"
	FailureSourceAuthProvider FailureSource = "AUTH_PROVIDER"
	FailureSourceNetwork      FailureSource = "NETWORK"
)

// FailureOrigin describes where in the run the failure was raised.
type FailureOrigin struct {
	Type     FailureSource `json:"type"`
	Location string        `json:"location"`
	Details  string        `json:"details"`
}

// FailedURL identifies one record of a failed shard run.
type FailedURL struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// FailureRecord is the diagnostic written when a shard run fails.
type FailureRecord struct {
	// Time the failure was recorded
	Timestamp time.Time `json:"timestamp"`
	// Device profile name
	Project string `json:"project"`
	// Shard identifier
	ShardID string `json:"urlsChunk"`
	// FULL when the shard was aborted, PARTIAL when it continued
	FailureType FailureType `json:"failureType"`
	// Classified origin of the failure
	FailureSource FailureOrigin `json:"failureSource"`
	// Human readable reason
	FailureReason string `json:"failureReason"`
	// Number of records in the shard
	TotalURLs int `json:"totalUrls"`
	// Records processed so far
	CompletedURLs int `json:"completedUrls"`
	// Records not yet processed
	RemainingURLs []FailedURL `json:"remainingUrls"`
	// Records that failed so far
	FailedURLs []FailedURL `json:"failedUrls"`
	// Command that re-runs the failed and remaining records
	RerunCommand string `json:"rerunCommand,omitempty"`
}

// FailureSummary is the merge of every shard's FailureRecord.
type FailureSummary struct {
	Timestamp     time.Time       `json:"timestamp"`
	TotalFailures int             `json:"totalFailures"`
	Failures      []FailureRecord `json:"failures"`
}
