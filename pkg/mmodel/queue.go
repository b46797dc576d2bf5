package mmodel

import "time"

// DLQMessage wraps a record that could not be applied and was routed to the
// dead-letter topic, carrying enough of the original to replay it by hand.
type DLQMessage struct {
	OriginalTopic     string    `json:"originalTopic"`
	OriginalPartition int32     `json:"originalPartition"`
	OriginalOffset    int64     `json:"originalOffset"`
	OriginalKey       string    `json:"originalKey"`
	OriginalValue     []byte    `json:"originalValue"`
	FailedAt          time.Time `json:"failedAt"`
	RetryCount        int       `json:"retryCount"`
	ErrorKind         string    `json:"errorKind"`
	ErrorMessage      string    `json:"errorMessage"`
}

// SnapshotEntry is one committed balance handed to the snapshot updater.
// Timestamp is the logical timestamp compared by the last-writer-wins script.
type SnapshotEntry struct {
	Balance   Balance
	Timestamp int64
}
