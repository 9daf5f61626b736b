package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/pkg/types"
)

// OnResult registers a callback fired after every async job completes. The
// bridge uses this to broadcast results over WebSocket. Callbacks run on the
// job's goroutine, after the result has been delivered to the job channel.
func (e *Engine) OnResult(fn func(jobID string, result *types.EngineResult)) {
	if fn == nil {
		return
	}
	e.cbMu.Lock()
	e.onResult = append(e.onResult, fn)
	e.cbMu.Unlock()
}

// ProcessAsync handles one user input on a background goroutine. The busy
// check happens synchronously so a rejected caller learns immediately;
// otherwise a job id and a single-result channel are returned. The job runs
// to completion even if the caller stops reading the channel.
func (e *Engine) ProcessAsync(ctx context.Context, input string, scene *types.SceneSnapshot) (string, <-chan *types.EngineResult, error) {
	if !e.processing.CompareAndSwap(false, true) {
		return "", nil, ErrBusy
	}

	jobID := "job_" + uuid.New().String()[:8]
	ch := make(chan *types.EngineResult, 1)

	go func() {
		defer e.processing.Store(false)

		var result *types.EngineResult
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("panic during async processing",
						zap.String("job_id", jobID),
						zap.Any("panic", r))
					result = &types.EngineResult{Error: "Processing error"}
				}
			}()
			result = e.process(ctx, input, scene)
		}()

		ch <- result
		close(ch)
		e.fireCallbacks(jobID, result)
	}()

	return jobID, ch, nil
}

// ExecutePlanStepAsync runs one plan step on a background goroutine with the
// same contract as ProcessAsync: the guard is claimed before returning, so a
// busy engine rejects synchronously.
func (e *Engine) ExecutePlanStepAsync(ctx context.Context, planID string, stepNumber int) (string, <-chan *types.EngineResult, error) {
	if !e.processing.CompareAndSwap(false, true) {
		return "", nil, ErrBusy
	}

	jobID := "job_" + uuid.New().String()[:8]
	ch := make(chan *types.EngineResult, 1)

	go func() {
		defer e.processing.Store(false)

		var result *types.EngineResult
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("panic during async step execution",
						zap.String("job_id", jobID),
						zap.Any("panic", r))
					result = &types.EngineResult{Error: "Processing error"}
				}
			}()
			result = e.executePlanStep(ctx, planID, stepNumber)
		}()

		ch <- result
		close(ch)
		e.fireCallbacks(jobID, result)
	}()

	return jobID, ch, nil
}

func (e *Engine) fireCallbacks(jobID string, result *types.EngineResult) {
	e.cbMu.RLock()
	callbacks := make([]func(string, *types.EngineResult), len(e.onResult))
	copy(callbacks, e.onResult)
	e.cbMu.RUnlock()

	for _, fn := range callbacks {
		fn(jobID, result)
	}
}
