/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package eventemitting

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/internal/stats"
	"github.com/noctarius/postgres-event-streamer/internal/waiting"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/schema"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closableStream struct {
	events  chan *stream.ChangeEvent
	stopped atomic.Bool
	waiter  *waiting.Waiter
}

func (s *closableStream) Next(
	ctx context.Context,
) (*stream.ChangeEvent, error) {

	if s.stopped.Load() {
		return nil, stream.ErrStreamClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event := <-s.events:
		return event, nil
	}
}

func (s *closableStream) Acknowledge(
	_ pgtypes.LSN,
) error {

	return nil
}

func (s *closableStream) Positions() (received, confirmed pgtypes.LSN) {
	return 0, 0
}

func (s *closableStream) Stop() error {
	s.stopped.Store(true)
	s.waiter.Signal()
	return nil
}

type countingSinkManager struct {
	attempts atomic.Int32
	failing  bool
}

func (c *countingSinkManager) Start() error {
	return nil
}

func (c *countingSinkManager) Stop() error {
	return nil
}

func (c *countingSinkManager) Emit(
	_ time.Time, _ string, _, _ schema.Struct,
) error {

	c.attempts.Add(1)
	if c.failing {
		return errors.Errorf("sink unavailable")
	}
	return nil
}

type acceptAllFilter struct{}

func (acceptAllFilter) Evaluate(
	_ *stream.ChangeEvent,
) (bool, error) {

	return true, nil
}

type staticNameGenerator struct{}

func (staticNameGenerator) EventTopicName(
	schemaName, tableName string,
) string {

	return "testdb." + schemaName + "." + tableName
}

func (staticNameGenerator) MessageTopicName() string {
	return "testdb.message"
}

func newTestEmitter(
	t *testing.T, failing bool,
) (*EventEmitter, *closableStream, *countingSinkManager) {

	testStream := &closableStream{
		events: make(chan *stream.ChangeEvent, 1),
		waiter: waiting.NewWaiterWithTimeout(time.Second * 5),
	}
	sinkManager := &countingSinkManager{failing: failing}

	emitter, err := NewEventEmitter(
		&spiconfig.Config{}, testStream, sinkManager,
		staticNameGenerator{}, acceptAllFilter{}, &stats.Reporter{},
	)
	require.NoError(t, err)

	// Immediate retries, the backoff delays aren't under test
	emitter.backOff = backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxEmitRetries)
	return emitter, testStream, sinkManager
}

func Test_Emit_Retries_Exhausted_Stops_Stream(
	t *testing.T,
) {

	emitter, testStream, sinkManager := newTestEmitter(t, true)

	require.NoError(t, emitter.Start())
	testStream.events <- &stream.ChangeEvent{
		Operation: schema.OP_CREATE,
		Namespace: "public",
		Table:     "customers",
	}

	// The emitter closes the stream once the retries are exhausted
	require.NoError(t, testStream.waiter.Await())
	assert.True(t, testStream.stopped.Load())
	assert.Equal(t, int32(maxEmitRetries+1), sinkManager.attempts.Load())

	require.NoError(t, emitter.Stop())
}

func Test_Emit_Success_Keeps_Stream_Open(
	t *testing.T,
) {

	emitter, testStream, sinkManager := newTestEmitter(t, false)

	require.NoError(t, emitter.Start())
	testStream.events <- &stream.ChangeEvent{
		Operation: schema.OP_CREATE,
		Namespace: "public",
		Table:     "customers",
	}

	require.NoError(t, emitter.Stop())
	assert.False(t, testStream.stopped.Load())
	assert.Equal(t, int32(1), sinkManager.attempts.Load())
}
