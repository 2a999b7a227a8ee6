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

package stream

import (
	"context"

	"github.com/noctarius/postgres-event-streamer/internal/containers"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/replicationcontext"
)

const defaultEventBufferCapacity = uint(8192)

type streamManager struct {
	replicationContext replicationcontext.ReplicationContext
	queue              *containers.Queue[*ChangeEvent]
	autoAcknowledge    bool
}

func NewStreamManager(
	config *spiconfig.Config, replicationContext replicationcontext.ReplicationContext,
) (Manager, error) {

	capacity := spiconfig.GetOrDefault(
		config, spiconfig.PropertyEventBufferCapacity, defaultEventBufferCapacity,
	)

	return &streamManager{
		replicationContext: replicationContext,
		queue:              containers.NewQueue[*ChangeEvent](int(capacity)),
		autoAcknowledge:    replicationContext.AcknowledgeMode() == spiconfig.AutoAcknowledge,
	}, nil
}

func (sm *streamManager) Publish(
	event *ChangeEvent,
) error {

	if !sm.queue.Push(event) {
		return ErrStreamClosed
	}
	return nil
}

func (sm *streamManager) Next(
	ctx context.Context,
) (*ChangeEvent, error) {

	// Prefer buffered events so a stop drains the queue before the
	// terminal signal surfaces
	select {
	case event := <-sm.queue.Channel():
		return sm.handOver(event)
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case event := <-sm.queue.Channel():
		return sm.handOver(event)

	case <-sm.queue.Done():
		select {
		case event := <-sm.queue.Channel():
			return sm.handOver(event)
		default:
			return nil, ErrStreamClosed
		}
	}
}

func (sm *streamManager) handOver(
	event *ChangeEvent,
) (*ChangeEvent, error) {

	if sm.autoAcknowledge {
		if err := sm.replicationContext.Confirm(event.LSN); err != nil {
			return nil, err
		}
	}
	return event, nil
}

func (sm *streamManager) Acknowledge(
	lsn pgtypes.LSN,
) error {

	return sm.replicationContext.Confirm(lsn)
}

func (sm *streamManager) Positions() (received, confirmed pgtypes.LSN) {
	return sm.replicationContext.LastReceivedLSN(), sm.replicationContext.LastConfirmedLSN()
}

// Stop locks the queue against further publishes and unblocks a
// producer parked at capacity. A consumer blocked in Next observes
// ErrStreamClosed once the already buffered events are drained.
func (sm *streamManager) Stop() error {
	sm.queue.Close()
	return nil
}
