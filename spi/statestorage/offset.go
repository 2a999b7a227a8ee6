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

package statestorage

import (
	"encoding/binary"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
)

const offsetBinaryLength = 16

// Offset is the durable resume position of one replication slot.
type Offset struct {
	Timestamp time.Time   `json:"timestamp"`
	LSN       pgtypes.LSN `json:"lsn"`
}

func (o *Offset) UnmarshalBinary(
	data []byte,
) error {

	if len(data) < offsetBinaryLength {
		return errors.Errorf(
			"offset data too short: expected %d bytes, got %d", offsetBinaryLength, len(data),
		)
	}
	o.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(data[:8]))).In(time.UTC)
	o.LSN = pgtypes.LSN(binary.BigEndian.Uint64(data[8:]))
	return nil
}

func (o *Offset) MarshalBinary() ([]byte, error) {
	data := make([]byte, offsetBinaryLength)
	binary.BigEndian.PutUint64(data[:8], uint64(o.Timestamp.UnixNano()))
	binary.BigEndian.PutUint64(data[8:], uint64(o.LSN))
	return data, nil
}

func (o *Offset) Equal(
	other *Offset,
) bool {

	return o.Timestamp.Equal(other.Timestamp) && o.LSN == other.LSN
}
