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

package stream

import (
	"time"

	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/schema"
)

// ChangeEvent is one fully decoded change, ready for dispatch. The
// LSN is the WAL position of the originating frame and is the value
// to acknowledge once the event is processed downstream.
type ChangeEvent struct {
	// Operation of the event
	Operation schema.Operation
	// Namespace (schema) of the affected relation
	Namespace string
	// Table name of the affected relation
	Table string
	// Key holds the replica identity key columns of the row
	Key schema.Struct
	// Envelope is the debezium style event payload
	Envelope schema.Struct
	// LSN is the WAL position of the frame that produced this event
	LSN pgtypes.LSN
	// Xid of the enclosing transaction
	Xid uint32
	// CommitTime of the enclosing transaction
	CommitTime time.Time
}
