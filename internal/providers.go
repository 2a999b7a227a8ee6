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
	// Register all implementation providers with their respective registries
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/namingstrategies"
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/sinks/awskinesis"
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/sinks/awssqs"
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/sinks/kafka"
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/sinks/nats"
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/sinks/redis"
	_ "github.com/noctarius/postgres-event-streamer/internal/eventing/sinks/stdout"
	_ "github.com/noctarius/postgres-event-streamer/internal/statestorages/dummy"
	_ "github.com/noctarius/postgres-event-streamer/internal/statestorages/file"
)
