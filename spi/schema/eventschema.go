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
	"time"

	"github.com/noctarius/postgres-event-streamer/internal/version"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
)

// ConnectorName identifies the producer in the source block of every
// emitted event, matching the debezium source descriptor layout.
const ConnectorName = "pgoutput-decoder"

type Operation string

const (
	OP_READ     Operation = "r"
	OP_CREATE   Operation = "c"
	OP_UPDATE   Operation = "u"
	OP_DELETE   Operation = "d"
	OP_TRUNCATE Operation = "t"
	OP_MESSAGE  Operation = "m"
)

// CreateEvent builds the envelope payload for an inserted row. Insert
// events never carry a before image.
func CreateEvent(
	record Struct, source Struct,
) Struct {

	event := make(Struct)
	event[FieldNameOperation] = string(OP_CREATE)
	event[FieldNameAfter] = record
	if source != nil {
		event[FieldNameSource] = source
	}
	applyEventTimestamps(event)
	return event
}

// UpdateEvent builds the envelope payload for an updated row. The
// before image is only present when the replica identity transmitted
// an old tuple.
func UpdateEvent(
	before, after, source Struct,
) Struct {

	event := make(Struct)
	event[FieldNameOperation] = string(OP_UPDATE)
	if before != nil {
		event[FieldNameBefore] = before
	}
	if after != nil {
		event[FieldNameAfter] = after
	}
	if source != nil {
		event[FieldNameSource] = source
	}
	applyEventTimestamps(event)
	return event
}

// DeleteEvent builds the envelope payload for a deleted row. With
// tombstone enabled the after field is serialized as an explicit null
// for log compacted topics.
func DeleteEvent(
	before, source Struct, tombstone bool,
) Struct {

	event := make(Struct)
	event[FieldNameOperation] = string(OP_DELETE)
	if before != nil {
		event[FieldNameBefore] = before
	}
	if tombstone {
		event[FieldNameAfter] = nil
	}
	if source != nil {
		event[FieldNameSource] = source
	}
	applyEventTimestamps(event)
	return event
}

// TruncateEvent builds the envelope payload for a relation truncation.
func TruncateEvent(
	source Struct,
) Struct {

	event := make(Struct)
	event[FieldNameOperation] = string(OP_TRUNCATE)
	if source != nil {
		event[FieldNameSource] = source
	}
	applyEventTimestamps(event)
	return event
}

// MessageEvent builds the envelope payload for a logical decoding
// message emitted through pg_logical_emit_message. The content is
// transported base64 encoded since it may be arbitrary binary data.
func MessageEvent(
	prefix string, content []byte, source Struct,
) Struct {

	event := make(Struct)
	event[FieldNameOperation] = string(OP_MESSAGE)
	event[FieldNameMessage] = Struct{
		FieldNamePrefix:  prefix,
		FieldNameContent: base64.StdEncoding.EncodeToString(content),
	}
	if source != nil {
		event[FieldNameSource] = source
	}
	applyEventTimestamps(event)
	return event
}

func MessageKey(
	prefix string,
) Struct {

	return Struct{
		FieldNamePrefix: prefix,
	}
}

// Source builds the source metadata block shared by all events of one
// transaction. The timestamp is the transaction commit time, name is
// the logical name of the stream (topic prefix).
func Source(
	lsn pgtypes.LSN, commitTime time.Time, name, databaseName,
	schemaName, tableName string, transactionId *uint32,
) Struct {

	source := Struct{
		FieldNameVersion:   version.Version,
		FieldNameConnector: ConnectorName,
		FieldNameName:      name,
		FieldNameTimestamp: commitTime.UnixMilli(),
		FieldNameSnapshot:  false,
		FieldNameDatabase:  databaseName,
		FieldNameSchema:    schemaName,
		FieldNameTable:     tableName,
		FieldNameLSN:       lsn.String(),
	}
	if transactionId != nil {
		source[FieldNameTxId] = int64(*transactionId)
	}
	return source
}

// nowTimestamps is replaced in tests to keep envelope fixtures stable.
var nowTimestamps = func() (int64, int64, int64) {
	now := time.Now()
	return now.UnixMilli(), now.UnixMicro(), now.UnixNano()
}

func applyEventTimestamps(
	event Struct,
) {

	millis, micros, nanos := nowTimestamps()
	event[FieldNameTimestamp] = millis
	event[FieldNameTimestampUs] = micros
	event[FieldNameTimestampNs] = nanos
}
