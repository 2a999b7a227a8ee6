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
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
)

// SystemConfig carries the loaded configuration and a set of optional
// provider overrides. A nil provider keeps the default wiring; tests
// use the overrides to swap single components for mocks.
type SystemConfig struct {
	*spiconfig.Config

	PgxConfig                  *pgx.ConnConfig
	EventEmitterProvider       EventEmitterProvider
	EventFilterProvider        EventFilterProvider
	NamingStrategyProvider     NamingStrategyProvider
	ReplicationChannelProvider ReplicationChannelProvider
	ReplicationContextProvider ReplicationContextProvider
	SideChannelProvider        SideChannelProvider
	SinkProvider               SinkProvider
	StateStorageProvider       StateStorageProvider
	StreamManagerProvider      StreamManagerProvider
	TypeManagerProvider        TypeManagerProvider
}

func NewSystemConfig(
	config *spiconfig.Config,
) *SystemConfig {

	return &SystemConfig{
		Config: config,
	}
}
