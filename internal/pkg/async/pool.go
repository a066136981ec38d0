// Package async runs independent named tasks on a bounded set of goroutines.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool bounds how many tasks run at once. A Pool holds no state between
// calls and may be reused.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs every task and returns the results keyed by task name. Tasks
// that had not started when ctx was cancelled report ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	queue := make(chan Task)
	out := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if err := ctx.Err(); err != nil {
					out <- Result{Name: task.Name, Err: err}
					continue
				}
				data, err := task.Execute()
				out <- Result{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()
	close(out)

	results := make(map[string]Result, len(tasks))
	for r := range out {
		results[r.Name] = r
	}
	return results
}

// Get extracts a typed result. A missing result, a task error or a type
// mismatch are all returned as errors.
func Get[T any](results map[string]Result, name string) (T, error) {
	var zero T
	r, ok := results[name]
	if !ok {
		return zero, fmt.Errorf("no result for task %q", name)
	}
	if r.Err != nil {
		return zero, r.Err
	}
	v, ok := r.Data.(T)
	if !ok {
		return zero, fmt.Errorf("task %q returned %T", name, r.Data)
	}
	return v, nil
}
