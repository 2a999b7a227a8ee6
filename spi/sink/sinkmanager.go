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

package sink

import (
	"time"

	"github.com/noctarius/postgres-event-streamer/spi/schema"
)

type Manager interface {
	Start() error
	Stop() error
	Emit(
		timestamp time.Time, topicName string, key, envelope schema.Struct,
	) error
}

type sinkManager struct {
	sinkContext *sinkContext
	sink        Sink
}

func NewSinkManager(
	sink Sink,
) Manager {

	return &sinkManager{
		sinkContext: newSinkContext(),
		sink:        sink,
	}
}

func (sm *sinkManager) Start() error {
	return sm.sink.Start()
}

func (sm *sinkManager) Stop() error {
	return sm.sink.Stop()
}

func (sm *sinkManager) Emit(
	timestamp time.Time, topicName string, key, envelope schema.Struct,
) error {

	return sm.sink.Emit(sm.sinkContext, timestamp, topicName, key, envelope)
}
