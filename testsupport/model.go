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

package testsupport

import (
	"github.com/noctarius/postgres-event-streamer/spi/schema"
)

type Source struct {
	Connector string `json:"connector"`
	DB        string `json:"db"`
	LSN       string `json:"lsn"`
	TxId      int64  `json:"txId"`
	Name      string `json:"name"`
	Schema    string `json:"schema"`
	Snapshot  bool   `json:"snapshot"`
	Table     string `json:"table"`
	TsMs      uint64 `json:"ts_ms"`
	Version   string `json:"version"`
}

type Message struct {
	Prefix  string `json:"prefix"`
	Content string `json:"content"`
}

type Envelope struct {
	Raw     map[string]any
	Before  map[string]any   `json:"before"`
	After   map[string]any   `json:"after"`
	Op      schema.Operation `json:"op"`
	Source  Source           `json:"source"`
	Message *Message         `json:"message"`
	TsMs    uint64           `json:"ts_ms"`
	TsUs    uint64           `json:"ts_us"`
	TsNs    uint64           `json:"ts_ns"`
}

type Column struct {
	name         string
	pgType       string
	nullable     bool
	primaryKey   bool
	defaultValue *string
}

func NewColumn(name, pgType string, nullable, primaryKey bool, defaultValue *string) Column {
	return Column{
		name:         name,
		pgType:       pgType,
		nullable:     nullable,
		primaryKey:   primaryKey,
		defaultValue: defaultValue,
	}
}

func (c Column) Name() string {
	return c.name
}

func (c Column) PgType() string {
	return c.pgType
}

func (c Column) IsNullable() bool {
	return c.nullable
}

func (c Column) IsPrimaryKey() bool {
	return c.primaryKey
}

func (c Column) DefaultValue() *string {
	return c.defaultValue
}
