// Package sink provides the statement sinks an import executes against.
package sink

import (
	"context"
	"sync"

	"github.com/darianmavgo/mkimport/converters/common"
)

var (
	_ common.Sink = (*MySQL)(nil)
	_ common.Sink = (*Journal)(nil)
	_ common.Sink = (*Recorder)(nil)
)

// Recorder keeps every statement in memory. FailOn, when set, decides which
// statements are rejected.
type Recorder struct {
	mu         sync.Mutex
	Statements []string
	FailOn     func(index int, statement string) error
}

// Exec implements common.Sink.
func (r *Recorder) Exec(_ context.Context, statement string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.Statements)
	r.Statements = append(r.Statements, statement)
	if r.FailOn != nil {
		return r.FailOn(idx, statement)
	}
	return nil
}
