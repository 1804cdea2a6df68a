// Copyright 2018 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package loop

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultQueueSize is the capacity of the queue when none is given.
	DefaultQueueSize = 64
)

var (
	// PanicError is returned by Do when the function panicked.
	PanicError = errors.New("request panicked")
	IsPanic    = isErrorFunc(PanicError)
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}

// Loop runs all posted functions on a single goroutine, in the order
// in which they were posted.
// Hardware edges and remote commands are handled on the loop, so
// controller state is never touched concurrently.
type Loop struct {
	log   zerolog.Logger
	queue chan func()
}

// New creates a loop with a queue of the given size.
// Use Run to start processing.
func New(log zerolog.Logger, size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		log:   log.With().Str("component", "loop").Logger(),
		queue: make(chan func(), size),
	}
}

// Post puts the given function on the queue without blocking.
// Returns false when the queue is full, in which case the function
// is dropped.
func (l *Loop) Post(fn func()) bool {
	select {
	case l.queue <- fn:
		postedTotal.Inc()
		return true
	default:
		droppedTotal.Inc()
		l.log.Warn().Msg("Queue full, dropping request")
		return false
	}
}

// Do runs the given function on the loop and waits for its result.
// Do must not be called from a function that runs on the loop.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	req := func() {
		err := PanicError
		defer func() {
			done <- err
		}()
		err = fn()
	}

	// Put request in queue
	select {
	case l.queue <- req:
		postedTotal.Inc()
	case <-ctx.Done():
		return ctx.Err()
	}

	// Wait until result is available
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the queue until the given context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Debug().Msg("Loop started")
	defer l.log.Debug().Msg("Loop stopped")
	for {
		select {
		case req := <-l.queue:
			l.execute(req)
		case <-ctx.Done():
			return nil
		}
	}
}

// execute a single request, keeping the loop alive when it panics.
func (l *Loop) execute(req func()) {
	defer func() {
		if r := recover(); r != nil {
			panicsTotal.Inc()
			l.log.Error().Str("panic", fmt.Sprint(r)).Msg("Request panicked")
		}
	}()
	req()
	executedTotal.Inc()
}
