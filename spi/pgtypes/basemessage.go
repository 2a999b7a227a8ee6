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

package pgtypes

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Replication timestamps are microseconds since the PostgreSQL epoch
// (2000-01-01 00:00:00 UTC).
var postgresEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type baseMessage struct {
	msgType MessageType
}

// Type returns the message tag byte of the decoded frame.
func (m *baseMessage) Type() MessageType {
	return m.msgType
}

func (m *baseMessage) SetType(
	t MessageType,
) {

	m.msgType = t
}

func (m *baseMessage) lengthError(
	name string, expected, actual int,
) error {

	return protocolErrorf(
		"%s truncated: expected at least %d bytes, got %d", name, expected, actual,
	)
}

func (m *baseMessage) decodeStringError(
	name, field string,
) error {

	return protocolErrorf("%s.%s string isn't null terminated", name, field)
}

func (m *baseMessage) decodeString(
	src []byte,
) (string, int) {

	end := bytes.IndexByte(src, byte(0))
	if end == -1 {
		return "", -1
	}
	// Trim the trailing null byte before converting to a Go string
	return string(src[:end]), end + 1
}

func (m *baseMessage) decodeLSN(
	src []byte,
) (LSN, int) {

	return LSN(binary.BigEndian.Uint64(src)), 8
}

func (m *baseMessage) decodeTime(
	src []byte,
) (time.Time, int) {

	micros := int64(binary.BigEndian.Uint64(src))
	return postgresEpoch.Add(time.Duration(micros) * time.Microsecond), 8
}

func (m *baseMessage) decodeUint32(
	src []byte,
) (uint32, int) {

	return binary.BigEndian.Uint32(src), 4
}

func (m *baseMessage) decodeUint16(
	src []byte,
) (uint16, int) {

	return binary.BigEndian.Uint16(src), 2
}

func (m *baseMessage) decodeInt32(
	src []byte,
) (int32, int) {

	return int32(binary.BigEndian.Uint32(src)), 4
}
