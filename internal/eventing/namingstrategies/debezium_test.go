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

package namingstrategies

import (
	"testing"

	"github.com/noctarius/postgres-event-streamer/spi/topic/namegenerator"
	"github.com/stretchr/testify/assert"
)

func Test_Debezium_Event_Topic_Name(
	t *testing.T,
) {

	strategy := &DebeziumNamingStrategy{}
	assert.Equal(t, "prefix.public.customers", strategy.EventTopicName("prefix", "public", "customers"))
}

func Test_Debezium_Event_Topic_Name_Sanitized(
	t *testing.T,
) {

	strategy := &DebeziumNamingStrategy{}
	assert.Equal(t, "prefix.public.my_table", strategy.EventTopicName("prefix", "public", "my table"))
}

func Test_Debezium_Message_Topic_Name(
	t *testing.T,
) {

	strategy := &DebeziumNamingStrategy{}
	assert.Equal(t, "prefix.message", strategy.MessageTopicName("prefix"))
}

func Test_Name_Generator_Applies_Prefix(
	t *testing.T,
) {

	generator := namegenerator.NewNameGenerator("integration", &DebeziumNamingStrategy{})
	assert.Equal(t, "integration.public.customers", generator.EventTopicName("public", "customers"))
	assert.Equal(t, "integration.message", generator.MessageTopicName())
}
