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
	"testing"
	"time"

	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Offset_Binary_Round_Trip(
	t *testing.T,
) {

	offset := &Offset{
		Timestamp: time.Date(2023, 6, 12, 9, 30, 0, 123456789, time.UTC),
		LSN:       pgtypes.LSN(0x16B374D848),
	}

	data, err := offset.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, offsetBinaryLength)

	restored := &Offset{}
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.True(t, offset.Equal(restored))
	assert.Equal(t, offset.Timestamp, restored.Timestamp)
	assert.Equal(t, offset.LSN, restored.LSN)
}

func Test_Offset_Rejects_Short_Data(
	t *testing.T,
) {

	restored := &Offset{}
	assert.Error(t, restored.UnmarshalBinary([]byte{1, 2, 3}))
}
