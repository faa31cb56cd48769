// Package effects runs non-critical side effects (audit rows, emails,
// counters, archives). An effect can fail or panic; the failure is logged
// and handed back as a Result, and it never becomes an error of the
// operation that triggered it.
package effects

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Effect is a best-effort unit of work.
type Effect func(ctx context.Context) error

// Result reports how an effect ended. It is informational only.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

func (r Result) Failed() bool {
	return r.Err != nil
}

type Runner struct {
	log *logrus.Entry
}

func NewRunner(log *logrus.Entry) *Runner {
	return &Runner{log: log}
}

// Run executes fn synchronously and swallows its error after logging it.
func (r *Runner) Run(ctx context.Context, name string, fn Effect) (res Result) {
	res.Name = name
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("effect panicked: %v", p)
		}
		res.Duration = time.Since(start)
		if res.Err != nil && r.log != nil {
			r.log.WithError(res.Err).WithField("effect", name).Warn("non-critical effect failed")
		}
	}()

	if fn == nil {
		return res
	}
	res.Err = fn(ctx)
	return res
}
