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

type FieldName = string

const (
	FieldNameBefore      FieldName = "before"
	FieldNameAfter       FieldName = "after"
	FieldNameOperation   FieldName = "op"
	FieldNameSource      FieldName = "source"
	FieldNameTimestamp   FieldName = "ts_ms"
	FieldNameTimestampUs FieldName = "ts_us"
	FieldNameTimestampNs FieldName = "ts_ns"
	FieldNameVersion     FieldName = "version"
	FieldNameConnector   FieldName = "connector"
	FieldNameName        FieldName = "name"
	FieldNameSnapshot    FieldName = "snapshot"
	FieldNameDatabase    FieldName = "db"
	FieldNameSchema      FieldName = "schema"
	FieldNameTable       FieldName = "table"
	FieldNameTxId        FieldName = "txId"
	FieldNameLSN         FieldName = "lsn"
	FieldNamePrefix      FieldName = "prefix"
	FieldNameContent     FieldName = "content"
	FieldNameMessage     FieldName = "message"
	FieldNamePayload     FieldName = "payload"
)

// Struct is the generic representation of an event payload fragment.
type Struct = map[FieldName]any
