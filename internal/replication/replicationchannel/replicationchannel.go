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

package replicationchannel

import (
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/internal/replication/replicationconnection"
	"github.com/noctarius/postgres-event-streamer/internal/replication/transactional"
	"github.com/noctarius/postgres-event-streamer/internal/typemanager"
	"github.com/noctarius/postgres-event-streamer/internal/waiting"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/replicationcontext"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
)

const defaultStatusInterval = time.Second * 10

// ReplicationChannel runs the logical replication read loop. It owns
// the lifecycle of the replication connection, reconnects with
// exponential backoff when the stream breaks, and hands assembled
// change events to the publisher.
type ReplicationChannel struct {
	logger             *logging.Logger
	replicationContext replicationcontext.ReplicationContext
	typeManager        *typemanager.TypeManager
	publisher          stream.Publisher
	assembler          *transactional.TransactionAssembler
	reconnectPolicy    *reconnectPolicy
	shutdownAwaiter    *waiting.ShutdownAwaiter
	statusInterval     time.Duration

	createdPublication bool
}

func NewReplicationChannel(
	config *spiconfig.Config, replicationContext replicationcontext.ReplicationContext,
	typeManager *typemanager.TypeManager, publisher stream.Publisher,
) (*ReplicationChannel, error) {

	logger, err := logging.NewLogger("ReplicationChannel")
	if err != nil {
		return nil, err
	}

	assembler, err := transactional.NewTransactionAssembler(
		config, typeManager, replicationContext.DatabaseName(),
	)
	if err != nil {
		return nil, err
	}

	return &ReplicationChannel{
		logger:             logger,
		replicationContext: replicationContext,
		typeManager:        typeManager,
		publisher:          publisher,
		assembler:          assembler,
		reconnectPolicy:    newReconnectPolicy(config),
		shutdownAwaiter:    waiting.NewShutdownAwaiter(),
		statusInterval: spiconfig.GetOrDefault(
			config, spiconfig.PropertyPostgresqlStatusInterval, defaultStatusInterval,
		),
	}, nil
}

// StartReplicationChannel ensures the publication exists and spawns
// the replication loop. The loop keeps the stream alive across
// disconnects until StopReplicationChannel is called.
func (rc *ReplicationChannel) StartReplicationChannel() error {
	if err := rc.ensurePublication(); err != nil {
		return err
	}

	go rc.replicationLoop()
	return nil
}

// StopReplicationChannel initiates a clean shutdown of the replication
// loop and blocks until it finished.
func (rc *ReplicationChannel) StopReplicationChannel() error {
	rc.shutdownAwaiter.SignalShutdown()
	if err := rc.shutdownAwaiter.AwaitDone(); err != nil {
		return err
	}
	if rc.createdPublication && rc.replicationContext.PublicationAutoDrop() {
		if err := rc.replicationContext.DropPublication(
			rc.replicationContext.PublicationName(),
		); err != nil {
			return err
		}
		rc.logger.Infof("Dropped publication %s", rc.replicationContext.PublicationName())
	}
	return nil
}

func (rc *ReplicationChannel) ensurePublication() error {
	publicationName := rc.replicationContext.PublicationName()

	found, err := rc.replicationContext.ExistsPublication(publicationName)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if found {
		return nil
	}

	if !rc.replicationContext.PublicationCreate() {
		return errors.Errorf(
			"publication '%s' doesn't exist and creation is disabled", publicationName,
		)
	}

	created, err := rc.replicationContext.CreatePublication(publicationName)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if created {
		rc.createdPublication = true
		rc.logger.Infof("Created publication %s", publicationName)
	}
	return nil
}

// replicationLoop runs sessions back to back. A session ending with a
// restartable error schedules the next attempt through the reconnect
// policy; a clean shutdown or an exhausted policy ends the loop.
func (rc *ReplicationChannel) replicationLoop() {
	defer rc.shutdownAwaiter.SignalDone()

	for {
		restart, err := rc.runReplicationSession()
		if !restart {
			if err != nil {
				rc.logger.Errorf("Replication channel failed: %s", err)
			}
			return
		}

		rc.logger.Warnf("Replication session lost: %s", err)
		delay, err := rc.reconnectPolicy.next()
		if err != nil {
			rc.logger.Errorf("Giving up on reconnecting: %s", err)
			return
		}
		rc.logger.Infof("Reconnecting in %s", delay)

		select {
		case <-rc.shutdownAwaiter.AwaitShutdownChan():
			return
		case <-time.After(delay):
		}
	}
}

// runReplicationSession dials one replication connection and pumps it
// until shutdown or a stream error. The relation cache and transaction
// state are dropped up front since the restarted stream replays from
// the confirmed position.
func (rc *ReplicationChannel) runReplicationSession() (restart bool, err error) {
	connection, err := replicationconnection.NewReplicationConnection(rc.replicationContext)
	if err != nil {
		return true, err
	}
	defer func() {
		if closeErr := connection.Close(); closeErr != nil {
			rc.logger.Warnf("failed to close replication connection: %s", closeErr)
		}
	}()

	if _, created, err := connection.CreateReplicationSlot(); err != nil {
		return true, err
	} else if created {
		rc.logger.Infof("Created replication slot %s", rc.replicationContext.ReplicationSlotName())
	}

	rc.typeManager.ClearRelations()
	rc.assembler.Reset()

	restartLSN, err := connection.StartReplication(rc.pluginArguments())
	if err != nil {
		return true, err
	}
	rc.logger.Infof("Replication started at %s", restartLSN)
	rc.reconnectPolicy.reset()

	handler, err := newReplicationHandler(
		rc.replicationContext, rc.assembler, rc.publisher, rc.statusInterval,
	)
	if err != nil {
		return false, err
	}

	clean, err := handler.runHandler(connection, rc.shutdownAwaiter.AwaitShutdownChan())
	if !clean {
		// A closed event stream means the emitter hit a terminal
		// failure downstream, reconnecting cannot help
		if errors.Is(err, stream.ErrStreamClosed) {
			return false, err
		}
		return true, err
	}

	if err := connection.StopReplication(); err != nil {
		rc.logger.Errorf("shutdown failed (send copy done): %+v", err)
	}
	if err := connection.DropReplicationSlot(); err != nil {
		rc.logger.Errorf("shutdown failed (drop replication slot): %+v", err)
	}
	return false, err
}

func (rc *ReplicationChannel) pluginArguments() []string {
	pluginArguments := []string{
		fmt.Sprintf("publication_names '%s'", rc.replicationContext.PublicationName()),
		"proto_version '1'",
	}
	if rc.replicationContext.IsPG14GE() {
		pluginArguments = append(
			pluginArguments,
			"messages 'true'",
			"binary 'true'",
		)
	}
	return pluginArguments
}
