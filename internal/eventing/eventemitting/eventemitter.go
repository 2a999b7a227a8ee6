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

	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/internal/eventing/eventfiltering"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/internal/stats"
	"github.com/noctarius/postgres-event-streamer/internal/waiting"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/sink"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
	"github.com/noctarius/postgres-event-streamer/spi/topic/namegenerator"
)

const maxEmitRetries = 8

// EventEmitter drains the change event stream and hands events to the
// configured sink. Emits are retried with exponential backoff; in
// manual acknowledge mode the stream position advances only after the
// sink accepted the event.
type EventEmitter struct {
	logger          *logging.Logger
	stream          stream.Stream
	sinkManager     sink.Manager
	filter          eventfiltering.EventFilter
	nameGenerator   namegenerator.NameGenerator
	reporter        *stats.Reporter
	backOff         backoff.BackOff
	shutdownAwaiter *waiting.ShutdownAwaiter
	cancel          context.CancelFunc
	manualAck       bool
}

func NewEventEmitter(
	config *spiconfig.Config, eventStream stream.Stream, sinkManager sink.Manager,
	nameGenerator namegenerator.NameGenerator, filter eventfiltering.EventFilter,
	reporter *stats.Reporter,
) (*EventEmitter, error) {

	logger, err := logging.NewLogger("EventEmitter")
	if err != nil {
		return nil, err
	}

	acknowledgeMode := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlAcknowledgeMode, spiconfig.AutoAcknowledge,
	)

	return &EventEmitter{
		logger:          logger,
		stream:          eventStream,
		sinkManager:     sinkManager,
		filter:          filter,
		nameGenerator:   nameGenerator,
		reporter:        reporter,
		backOff:         backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxEmitRetries),
		shutdownAwaiter: waiting.NewShutdownAwaiter(),
		manualAck:       acknowledgeMode == spiconfig.ManualAcknowledge,
	}, nil
}

func (ee *EventEmitter) Start() error {
	if err := ee.sinkManager.Start(); err != nil {
		return errors.Wrap(err, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ee.cancel = cancel

	go ee.emitLoop(ctx)
	return nil
}

func (ee *EventEmitter) Stop() error {
	ee.shutdownAwaiter.SignalShutdown()
	ee.cancel()
	if err := ee.shutdownAwaiter.AwaitDone(); err != nil {
		return err
	}
	return ee.sinkManager.Stop()
}

func (ee *EventEmitter) emitLoop(
	ctx context.Context,
) {

	defer ee.shutdownAwaiter.SignalDone()

	for {
		event, err := ee.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.ErrStreamClosed) ||
				errors.Is(err, context.Canceled) {

				ee.logger.Infoln("Event stream drained, emitter shutting down")
				return
			}
			ee.logger.Errorf("Reading change event failed: %s", err)
			return
		}

		if err := ee.processEvent(event); err != nil {
			ee.logger.Errorf("Emitting change event failed: %+v", err)
			// Terminal failure: close the stream so the decode loop
			// unblocks and surfaces the broken pipeline instead of
			// wedging on a full event buffer
			if stopErr := ee.stream.Stop(); stopErr != nil {
				ee.logger.Warnf("Stopping the event stream failed: %s", stopErr)
			}
			return
		}
	}
}

func (ee *EventEmitter) processEvent(
	event *stream.ChangeEvent,
) error {

	accepted, err := ee.filter.Evaluate(event)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if !accepted {
		ee.reporter.Incr("events.filtered")
		return nil
	}

	topicName := ee.topicName(event)

	// Retryable operation
	operation := func() error {
		ee.logger.Tracef("Publishing event: %+v", event.Envelope)
		return ee.sinkManager.Emit(event.CommitTime, topicName, event.Key, event.Envelope)
	}

	// Run with backoff (it'll automatically reset before starting)
	if err := backoff.Retry(operation, ee.backOff); err != nil {
		return err
	}
	ee.reporter.Incr("events.emitted")

	if ee.manualAck {
		return ee.stream.Acknowledge(event.LSN)
	}
	return nil
}

func (ee *EventEmitter) topicName(
	event *stream.ChangeEvent,
) string {

	if event.Table == "" {
		return ee.nameGenerator.MessageTopicName()
	}
	return ee.nameGenerator.EventTopicName(event.Namespace, event.Table)
}
