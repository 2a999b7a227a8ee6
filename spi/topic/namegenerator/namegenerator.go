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

package namegenerator

import (
	"github.com/noctarius/postgres-event-streamer/spi/topic/namingstrategy"
)

type NameGenerator interface {
	// EventTopicName generates an event topic name for the given table
	EventTopicName(schemaName, tableName string) string
	// MessageTopicName generates a topic name for replication messages
	MessageTopicName() string
}

type nameGenerator struct {
	topicPrefix         string
	topicNamingStrategy namingstrategy.NamingStrategy
}

func NewNameGenerator(
	topicPrefix string, topicNamingStrategy namingstrategy.NamingStrategy,
) NameGenerator {

	return &nameGenerator{
		topicPrefix:         topicPrefix,
		topicNamingStrategy: topicNamingStrategy,
	}
}

func (ng *nameGenerator) EventTopicName(
	schemaName, tableName string,
) string {

	return ng.topicNamingStrategy.EventTopicName(ng.topicPrefix, schemaName, tableName)
}

func (ng *nameGenerator) MessageTopicName() string {
	return ng.topicNamingStrategy.MessageTopicName(ng.topicPrefix)
}
