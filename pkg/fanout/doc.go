// Package fanout runs a batch of independent calls in parallel on a bounded
// worker pool and collects their results in input order.
//
// A batch is all-or-nothing: the first failing task cancels the rest and
// Run returns a *TaskError naming it, never a partial result.
//
// Example usage:
//
//	exec := fanout.NewExecutor(fanout.DefaultConfig())
//	results, err := exec.Run(ctx, tasks)
//
// The executor:
//   - Queues every task index on a buffered channel
//   - Spawns min(MaxConcurrency, len(tasks)) workers
//   - Bounds each task with its own timeout
//   - Stops handing out work once any task fails
package fanout
