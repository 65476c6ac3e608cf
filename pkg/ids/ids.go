// Package ids mints the opaque correlation identifiers used across the
// crawl actor tree: SessionID, BatchID, StageID, and TaskID.
package ids

import "github.com/google/uuid"

// SessionID identifies one crawl session for its full lifetime.
type SessionID string

// BatchID identifies one contiguous page-range batch within a session.
type BatchID string

// StageID identifies one execution of one pipeline stage within a batch.
type StageID string

// TaskID identifies one indivisible unit of work within a stage.
type TaskID string

// NewSessionID mints a fresh, globally-unique session identifier.
func NewSessionID() SessionID { return SessionID("sess_" + uuid.New().String()) }

// NewBatchID mints a fresh, globally-unique batch identifier.
func NewBatchID() BatchID { return BatchID("batch_" + uuid.New().String()) }

// NewStageID mints a fresh, globally-unique stage identifier.
func NewStageID() StageID { return StageID("stage_" + uuid.New().String()) }

// NewTaskID mints a fresh, globally-unique task identifier.
func NewTaskID() TaskID { return TaskID("task_" + uuid.New().String()) }
