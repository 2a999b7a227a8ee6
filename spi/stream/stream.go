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

	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
)

// ErrStreamClosed is returned from Next once the stream is stopped
// and all remaining buffered events have been consumed.
var ErrStreamClosed = errors.Errorf("stream closed")

// Stream is the consumer surface of the change event pipeline. Events
// arrive in commit order. In manual acknowledge mode the consumer
// calls Acknowledge to advance the confirmed position; in auto mode
// every event handed out by Next confirms its own position.
type Stream interface {
	Next(
		ctx context.Context,
	) (*ChangeEvent, error)
	Acknowledge(
		lsn pgtypes.LSN,
	) error
	Positions() (received, confirmed pgtypes.LSN)
	Stop() error
}

// Publisher is the producer surface used by the replication decode
// loop. Publish blocks while the event buffer is at capacity, which
// throttles draining the replication connection.
type Publisher interface {
	Publish(
		event *ChangeEvent,
	) error
}

// Manager combines both ends of the event channel.
type Manager interface {
	Stream
	Publisher
}
