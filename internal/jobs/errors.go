package jobs

import "errors"

// ErrPollTimeout is recorded as the failure reason when an entity has been
// polled for longer than the configured bound.
var ErrPollTimeout = errors.New("poll timeout")

// ErrEngineFailed is recorded when the engine reports the job as failed.
var ErrEngineFailed = errors.New("engine reported failure")
