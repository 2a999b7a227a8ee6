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

package sysconfig

import (
	"github.com/jackc/pgx/v5"
	"github.com/noctarius/postgres-event-streamer/internal/eventing/eventemitting"
	"github.com/noctarius/postgres-event-streamer/internal/eventing/eventfiltering"
	"github.com/noctarius/postgres-event-streamer/internal/replication/replicationchannel"
	"github.com/noctarius/postgres-event-streamer/internal/stats"
	"github.com/noctarius/postgres-event-streamer/internal/typemanager"
	"github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/replicationcontext"
	"github.com/noctarius/postgres-event-streamer/spi/sidechannel"
	"github.com/noctarius/postgres-event-streamer/spi/sink"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
	"github.com/noctarius/postgres-event-streamer/spi/topic/namegenerator"
	"github.com/noctarius/postgres-event-streamer/spi/topic/namingstrategy"
)

type StateStorageProvider = func(config *config.Config) (statestorage.Storage, error)

type SideChannelProvider = func(
	pgxConfig *pgx.ConnConfig,
) (sidechannel.SideChannel, error)

type ReplicationContextProvider = func(
	config *config.Config, pgxConfig *pgx.ConnConfig,
	stateStorageManager statestorage.Manager, sideChannel sidechannel.SideChannel,
) (replicationcontext.ReplicationContext, error)

type TypeManagerProvider = func(config *config.Config) (*typemanager.TypeManager, error)

type StreamManagerProvider = func(
	config *config.Config, replicationContext replicationcontext.ReplicationContext,
) (stream.Manager, error)

type SinkProvider = func(config *config.Config) (sink.Sink, error)

type NamingStrategyProvider = func(config *config.Config) (namingstrategy.NamingStrategy, error)

type EventFilterProvider = func(config *config.Config) (eventfiltering.EventFilter, error)

type ReplicationChannelProvider = func(
	config *config.Config, replicationContext replicationcontext.ReplicationContext,
	typeManager *typemanager.TypeManager, publisher stream.Publisher,
) (*replicationchannel.ReplicationChannel, error)

type EventEmitterProvider = func(
	config *config.Config, eventStream stream.Stream, sinkManager sink.Manager,
	nameGenerator namegenerator.NameGenerator, filter eventfiltering.EventFilter,
	reporter *stats.Reporter,
) (*eventemitting.EventEmitter, error)
