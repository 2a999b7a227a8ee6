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

package replication

import (
	"github.com/noctarius/postgres-event-streamer/internal/eventing/eventemitting"
	"github.com/noctarius/postgres-event-streamer/internal/eventing/eventfiltering"
	"github.com/noctarius/postgres-event-streamer/internal/replication/replicationchannel"
	"github.com/noctarius/postgres-event-streamer/internal/replication/replicationcontext"
	"github.com/noctarius/postgres-event-streamer/internal/replication/sidechannel"
	"github.com/noctarius/postgres-event-streamer/internal/stats"
	"github.com/noctarius/postgres-event-streamer/internal/typemanager"
	"github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/sink"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
	"github.com/noctarius/postgres-event-streamer/spi/topic/namegenerator"
	"github.com/noctarius/postgres-event-streamer/spi/topic/namingstrategy"
	"github.com/noctarius/postgres-event-streamer/spi/wiring"
)

var StaticModule = wiring.DefineModule(
	"Static", func(module wiring.Module) {
		module.Provide(statestorage.NewStateStorageManager)
		module.Provide(sidechannel.NewSideChannel)
		module.Provide(replicationcontext.NewReplicationContext)
		module.Provide(typemanager.NewTypeManager)
		module.Provide(stream.NewStreamManager)
		module.Provide(sink.NewSinkManager)
		module.Provide(replicationchannel.NewReplicationChannel)
		module.Provide(eventemitting.NewEventEmitter)
		module.Provide(stats.NewStatsService)

		// The stream manager serves both ends of the pipeline
		module.Provide(func(streamManager stream.Manager) stream.Publisher {
			return streamManager
		})
		module.Provide(func(streamManager stream.Manager) stream.Stream {
			return streamManager
		})

		module.Provide(func(statsService *stats.Service) *stats.Reporter {
			return statsService.NewReporter("emitter")
		})

		module.Provide(func(
			c *config.Config, namingStrategy namingstrategy.NamingStrategy,
		) namegenerator.NameGenerator {

			topicPrefix := config.GetOrDefault(c, config.PropertyTopicPrefix, "postgres")
			return namegenerator.NewNameGenerator(topicPrefix, namingStrategy)
		})
	},
)

var DynamicModule = wiring.DefineModule(
	"Dynamic",
	func(module wiring.Module) {
		module.Provide(func(c *config.Config) (statestorage.Storage, error) {
			name := config.GetOrDefault(c, config.PropertyStateStorageType, config.NoneStorage)
			return statestorage.NewStateStorage(name, c)
		})

		module.Provide(func(c *config.Config) (namingstrategy.NamingStrategy, error) {
			name := config.GetOrDefault(c, config.PropertyNamingStrategy, config.Debezium)
			return namingstrategy.NewNamingStrategy(name, c)
		})

		module.Provide(func(c *config.Config) (sink.Sink, error) {
			name := config.GetOrDefault(c, config.PropertySink, config.Stdout)
			return sink.NewSink(name, c)
		})

		module.Provide(func(c *config.Config) (eventfiltering.EventFilter, error) {
			return eventfiltering.NewEventFilter(c.Sink.Filters)
		})
	},
)
