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

package internal

import (
	"github.com/go-errors/errors"
	"github.com/jackc/pgx/v5"
	"github.com/noctarius/postgres-event-streamer/internal/eventing/eventemitting"
	"github.com/noctarius/postgres-event-streamer/internal/replication"
	"github.com/noctarius/postgres-event-streamer/internal/replication/replicationchannel"
	"github.com/noctarius/postgres-event-streamer/internal/stats"
	"github.com/noctarius/postgres-event-streamer/internal/supporting"
	"github.com/noctarius/postgres-event-streamer/internal/sysconfig"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
	"github.com/noctarius/postgres-event-streamer/spi/wiring"
)

// Streamer is the top level assembly of the event streamer. It wires
// the replication side (side channel, replication channel, transaction
// assembly) to the eventing side (stream, filter, sink) and manages
// the startup and shutdown ordering of all components.
type Streamer struct {
	statsService        *stats.Service
	stateStorageManager statestorage.Manager
	streamManager       stream.Manager
	replicationChannel  *replicationchannel.ReplicationChannel
	eventEmitter        *eventemitting.EventEmitter
}

func NewStreamer(
	config *sysconfig.SystemConfig,
) (*Streamer, error) {

	if config.PgxConfig == nil {
		connection := spiconfig.GetOrDefault(
			config.Config, spiconfig.PropertyPostgresqlConnection, "host=localhost user=repl_user",
		)
		connConfig, err := pgx.ParseConfig(connection)
		if err != nil {
			return nil, errors.Errorf("PostgreSQL connection string failed to parse: %s", err.Error())
		}

		if pgPassword := spiconfig.GetOrDefault(
			config.Config, spiconfig.PropertyPostgresqlPassword, "",
		); pgPassword != "" {
			connConfig.Password = pgPassword
		}

		config.PgxConfig = connConfig
	}

	if spiconfig.GetOrDefault(
		config.Config, spiconfig.PropertyPostgresqlPublicationName, "",
	) == "" {
		return nil, errors.Errorf("PostgreSQL publication name required")
	}

	if config.Topic.Prefix == "" {
		config.Topic.Prefix = supporting.RandomTextString(20)
	}

	environment := wiring.DefineModule("Environment", func(module wiring.Module) {
		module.Provide(func() *spiconfig.Config {
			return config.Config
		})
		module.Provide(func() *pgx.ConnConfig {
			return config.PgxConfig
		})
	})

	overrides := wiring.DefineModule("Overrides", func(module wiring.Module) {
		module.MayProvide(config.EventEmitterProvider)
		module.MayProvide(config.EventFilterProvider)
		module.MayProvide(config.NamingStrategyProvider)
		module.MayProvide(config.ReplicationChannelProvider)
		module.MayProvide(config.ReplicationContextProvider)
		module.MayProvide(config.SideChannelProvider)
		module.MayProvide(config.SinkProvider)
		module.MayProvide(config.StateStorageProvider)
		module.MayProvide(config.StreamManagerProvider)
		module.MayProvide(config.TypeManagerProvider)
	})

	container, err := wiring.NewContainer(
		environment, replication.StaticModule, replication.DynamicModule, overrides,
	)
	if err != nil {
		return nil, err
	}

	streamer := &Streamer{}
	if err := container.Service(&streamer.statsService); err != nil {
		return nil, err
	}
	if err := container.Service(&streamer.stateStorageManager); err != nil {
		return nil, err
	}
	if err := container.Service(&streamer.streamManager); err != nil {
		return nil, err
	}
	if err := container.Service(&streamer.replicationChannel); err != nil {
		return nil, err
	}
	if err := container.Service(&streamer.eventEmitter); err != nil {
		return nil, err
	}
	return streamer, nil
}

// Start brings up the pipeline back to front: metrics and offset
// storage first, then the event emitter (which starts the sink), and
// finally the replication channel which begins to publish events.
func (s *Streamer) Start() error {
	if err := s.statsService.Start(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.stateStorageManager.Start(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.eventEmitter.Start(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.replicationChannel.StartReplicationChannel(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

// Stop tears down front to back. The replication channel stops
// producing first, the stream is closed so the emitter can drain the
// remaining buffered events, and only then the emitter and storages
// shut down.
func (s *Streamer) Stop() error {
	if err := s.replicationChannel.StopReplicationChannel(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.streamManager.Stop(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.eventEmitter.Stop(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.stateStorageManager.Stop(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := s.statsService.Stop(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}
