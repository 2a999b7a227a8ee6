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

package schema

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/noctarius/postgres-event-streamer/internal/version"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/stretchr/testify/assert"
)

func withFixedTimestamps(
	t *testing.T,
) {

	previous := nowTimestamps
	nowTimestamps = func() (int64, int64, int64) {
		return 1000, 1000000, 1000000000
	}
	t.Cleanup(func() {
		nowTimestamps = previous
	})
}

func Test_Create_Event(
	t *testing.T,
) {

	withFixedTimestamps(t)

	record := Struct{"id": 1, "name": "foo"}
	source := Struct{FieldNameTable: "foo"}

	event := CreateEvent(record, source)
	assert.Equal(t, string(OP_CREATE), event[FieldNameOperation])
	assert.Equal(t, record, event[FieldNameAfter])
	assert.Equal(t, source, event[FieldNameSource])
	assert.Equal(t, int64(1000), event[FieldNameTimestamp])
	assert.Equal(t, int64(1000000), event[FieldNameTimestampUs])
	assert.Equal(t, int64(1000000000), event[FieldNameTimestampNs])

	_, present := event[FieldNameBefore]
	assert.False(t, present)
}

func Test_Update_Event_With_Before_Image(
	t *testing.T,
) {

	withFixedTimestamps(t)

	before := Struct{"id": 1, "name": "foo"}
	after := Struct{"id": 1, "name": "bar"}

	event := UpdateEvent(before, after, nil)
	assert.Equal(t, string(OP_UPDATE), event[FieldNameOperation])
	assert.Equal(t, before, event[FieldNameBefore])
	assert.Equal(t, after, event[FieldNameAfter])

	_, present := event[FieldNameSource]
	assert.False(t, present)
}

func Test_Update_Event_Without_Before_Image(
	t *testing.T,
) {

	withFixedTimestamps(t)

	after := Struct{"id": 1, "name": "bar"}

	event := UpdateEvent(nil, after, nil)
	assert.Equal(t, string(OP_UPDATE), event[FieldNameOperation])
	assert.Equal(t, after, event[FieldNameAfter])

	_, present := event[FieldNameBefore]
	assert.False(t, present)
}

func Test_Delete_Event(
	t *testing.T,
) {

	withFixedTimestamps(t)

	before := Struct{"id": 1}

	event := DeleteEvent(before, nil, false)
	assert.Equal(t, string(OP_DELETE), event[FieldNameOperation])
	assert.Equal(t, before, event[FieldNameBefore])

	_, present := event[FieldNameAfter]
	assert.False(t, present)
}

func Test_Delete_Event_With_Tombstone(
	t *testing.T,
) {

	withFixedTimestamps(t)

	event := DeleteEvent(Struct{"id": 1}, nil, true)
	after, present := event[FieldNameAfter]
	assert.True(t, present)
	assert.Nil(t, after)
}

func Test_Truncate_Event(
	t *testing.T,
) {

	withFixedTimestamps(t)

	source := Struct{FieldNameTable: "foo"}

	event := TruncateEvent(source)
	assert.Equal(t, string(OP_TRUNCATE), event[FieldNameOperation])
	assert.Equal(t, source, event[FieldNameSource])

	_, present := event[FieldNameBefore]
	assert.False(t, present)
	_, present = event[FieldNameAfter]
	assert.False(t, present)
}

func Test_Message_Event_Encodes_Content(
	t *testing.T,
) {

	withFixedTimestamps(t)

	content := []byte("this is a replication message")

	event := MessageEvent("test-prefix", content, nil)
	assert.Equal(t, string(OP_MESSAGE), event[FieldNameOperation])

	message := event[FieldNameMessage].(Struct)
	assert.Equal(t, "test-prefix", message[FieldNamePrefix])
	assert.Equal(t, base64.StdEncoding.EncodeToString(content), message[FieldNameContent])

	decoded, err := base64.StdEncoding.DecodeString(message[FieldNameContent].(string))
	assert.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func Test_Message_Key(
	t *testing.T,
) {

	key := MessageKey("test-prefix")
	assert.Equal(t, Struct{FieldNamePrefix: "test-prefix"}, key)
}

func Test_Source_Descriptor(
	t *testing.T,
) {

	commitTime := time.Unix(1679702400, 0)
	transactionId := uint32(4711)

	source := Source(
		pgtypes.LSN(117259584), commitTime, "streamer",
		"app", "public", "foo", &transactionId,
	)
	assert.Equal(t, version.Version, source[FieldNameVersion])
	assert.Equal(t, ConnectorName, source[FieldNameConnector])
	assert.Equal(t, "streamer", source[FieldNameName])
	assert.Equal(t, commitTime.UnixMilli(), source[FieldNameTimestamp])
	assert.Equal(t, false, source[FieldNameSnapshot])
	assert.Equal(t, "app", source[FieldNameDatabase])
	assert.Equal(t, "public", source[FieldNameSchema])
	assert.Equal(t, "foo", source[FieldNameTable])
	assert.Equal(t, pgtypes.LSN(117259584).String(), source[FieldNameLSN])
	assert.Equal(t, int64(4711), source[FieldNameTxId])
}

func Test_Source_Descriptor_Without_Transaction_Id(
	t *testing.T,
) {

	source := Source(
		pgtypes.LSN(117259584), time.Unix(1679702400, 0), "streamer",
		"app", "public", "foo", nil,
	)

	_, present := source[FieldNameTxId]
	assert.False(t, present)
}
