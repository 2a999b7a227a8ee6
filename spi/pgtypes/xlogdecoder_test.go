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
	"testing"
	"time"

	"github.com/jackc/pgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendCString(
	buf []byte, s string,
) []byte {

	buf = append(buf, s...)
	return append(buf, 0)
}

func appendTextColumn(
	buf []byte, value string,
) []byte {

	buf = append(buf, TupleDataTypeText)
	buf = pgio.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func micros(
	t time.Time,
) uint64 {

	return uint64(t.Sub(postgresEpoch) / time.Microsecond)
}

func Test_Decode_Begin_Message(
	t *testing.T,
) {

	commitTime := time.Date(2023, 6, 12, 9, 30, 0, 123456000, time.UTC)

	frame := []byte{byte(MessageTypeBegin)}
	frame = pgio.AppendUint64(frame, 0x16B374D848)
	frame = pgio.AppendUint64(frame, micros(commitTime))
	frame = pgio.AppendUint32(frame, 778)

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	begin, ok := msg.(*BeginMessage)
	require.True(t, ok)
	assert.Equal(t, MessageTypeBegin, begin.Type())
	assert.Equal(t, LSN(0x16B374D848), begin.FinalLSN)
	assert.Equal(t, commitTime, begin.CommitTime)
	assert.Equal(t, uint32(778), begin.Xid)
}

func Test_Decode_Commit_Message(
	t *testing.T,
) {

	commitTime := time.Date(2023, 6, 12, 9, 30, 1, 0, time.UTC)

	frame := []byte{byte(MessageTypeCommit), 0}
	frame = pgio.AppendUint64(frame, 0x16B374D848)
	frame = pgio.AppendUint64(frame, 0x16B374D890)
	frame = pgio.AppendUint64(frame, micros(commitTime))

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	commit, ok := msg.(*CommitMessage)
	require.True(t, ok)
	assert.Equal(t, uint8(0), commit.Flags)
	assert.Equal(t, LSN(0x16B374D848), commit.CommitLSN)
	assert.Equal(t, LSN(0x16B374D890), commit.TransactionEndLSN)
	assert.Equal(t, commitTime, commit.CommitTime)
}

func Test_Decode_Relation_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeRelation)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = appendCString(frame, "public")
	frame = appendCString(frame, "orders")
	frame = append(frame, 'd')
	frame = pgio.AppendUint16(frame, 2)
	frame = append(frame, 1)
	frame = appendCString(frame, "id")
	frame = pgio.AppendUint32(frame, 20)
	frame = pgio.AppendUint32(frame, 0xFFFFFFFF)
	frame = append(frame, 0)
	frame = appendCString(frame, "total")
	frame = pgio.AppendUint32(frame, 1700)
	frame = pgio.AppendUint32(frame, 655366)

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	relation, ok := msg.(*RelationMessage)
	require.True(t, ok)
	assert.Equal(t, uint32(16385), relation.RelationID)
	assert.Equal(t, "public", relation.Namespace)
	assert.Equal(t, "orders", relation.RelationName)
	assert.Equal(t, uint8('d'), relation.ReplicaIdentity)
	require.Len(t, relation.Columns, 2)

	assert.Equal(t, "id", relation.Columns[0].Name)
	assert.True(t, relation.Columns[0].IsKey())
	assert.Equal(t, uint32(20), relation.Columns[0].DataType)
	assert.Equal(t, int32(-1), relation.Columns[0].TypeModifier)

	assert.Equal(t, "total", relation.Columns[1].Name)
	assert.False(t, relation.Columns[1].IsKey())
	assert.Equal(t, uint32(1700), relation.Columns[1].DataType)
	assert.Equal(t, int32(655366), relation.Columns[1].TypeModifier)
}

func Test_Decode_Insert_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeInsert)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = append(frame, 'N')
	frame = pgio.AppendUint16(frame, 3)
	frame = appendTextColumn(frame, "1")
	frame = append(frame, TupleDataTypeNull)
	frame = appendTextColumn(frame, "hello world")

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	insert, ok := msg.(*InsertMessage)
	require.True(t, ok)
	assert.Equal(t, uint32(16385), insert.RelationID)
	require.NotNil(t, insert.Tuple)
	require.Len(t, insert.Tuple.Columns, 3)
	assert.Equal(t, []byte("1"), insert.Tuple.Columns[0].Data)
	assert.True(t, insert.Tuple.Columns[1].IsNull())
	assert.Equal(t, []byte("hello world"), insert.Tuple.Columns[2].Data)
}

func Test_Decode_Update_Message_With_Old_Tuple(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeUpdate)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = append(frame, 'O')
	frame = pgio.AppendUint16(frame, 2)
	frame = appendTextColumn(frame, "1")
	frame = appendTextColumn(frame, "before")
	frame = append(frame, 'N')
	frame = pgio.AppendUint16(frame, 2)
	frame = appendTextColumn(frame, "1")
	frame = appendTextColumn(frame, "after")

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	update, ok := msg.(*UpdateMessage)
	require.True(t, ok)
	assert.Equal(t, uint8('O'), update.OldTupleType)
	require.NotNil(t, update.OldTuple)
	require.NotNil(t, update.NewTuple)
	assert.Equal(t, []byte("before"), update.OldTuple.Columns[1].Data)
	assert.Equal(t, []byte("after"), update.NewTuple.Columns[1].Data)
}

func Test_Decode_Update_Message_Without_Old_Tuple(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeUpdate)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = append(frame, 'N')
	frame = pgio.AppendUint16(frame, 1)
	frame = appendTextColumn(frame, "after")

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	update, ok := msg.(*UpdateMessage)
	require.True(t, ok)
	assert.Equal(t, uint8(0), update.OldTupleType)
	assert.Nil(t, update.OldTuple)
	require.NotNil(t, update.NewTuple)
	assert.Equal(t, []byte("after"), update.NewTuple.Columns[0].Data)
}

func Test_Decode_Update_Message_With_Unchanged_Toast(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeUpdate)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = append(frame, 'N')
	frame = pgio.AppendUint16(frame, 2)
	frame = appendTextColumn(frame, "1")
	frame = append(frame, TupleDataTypeToast)

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	update, ok := msg.(*UpdateMessage)
	require.True(t, ok)
	require.Len(t, update.NewTuple.Columns, 2)
	assert.True(t, update.NewTuple.Columns[1].IsUnchangedToast())
	assert.Nil(t, update.NewTuple.Columns[1].Data)
}

func Test_Decode_Delete_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeDelete)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = append(frame, 'K')
	frame = pgio.AppendUint16(frame, 1)
	frame = appendTextColumn(frame, "42")

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	deleteMsg, ok := msg.(*DeleteMessage)
	require.True(t, ok)
	assert.Equal(t, uint8('K'), deleteMsg.OldTupleType)
	require.NotNil(t, deleteMsg.OldTuple)
	assert.Equal(t, []byte("42"), deleteMsg.OldTuple.Columns[0].Data)
}

func Test_Decode_Truncate_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeTruncate)}
	frame = pgio.AppendUint32(frame, 2)
	frame = append(frame, TruncateOptionCascade)
	frame = pgio.AppendUint32(frame, 16385)
	frame = pgio.AppendUint32(frame, 16390)

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	truncate, ok := msg.(*TruncateMessage)
	require.True(t, ok)
	assert.Equal(t, uint8(1), truncate.Option)
	assert.Equal(t, []uint32{16385, 16390}, truncate.RelationIDs)
}

func Test_Decode_Type_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeType)}
	frame = pgio.AppendUint32(frame, 35251)
	frame = appendCString(frame, "public")
	frame = appendCString(frame, "geometry")

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	typ, ok := msg.(*TypeMessage)
	require.True(t, ok)
	assert.Equal(t, uint32(35251), typ.DataType)
	assert.Equal(t, "public", typ.Namespace)
	assert.Equal(t, "geometry", typ.Name)
}

func Test_Decode_Origin_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeOrigin)}
	frame = pgio.AppendUint64(frame, 0x16B374D848)
	frame = appendCString(frame, "upstream")

	msg, err := ParseXLogData(frame, nil)
	require.NoError(t, err)

	origin, ok := msg.(*OriginMessage)
	require.True(t, ok)
	assert.Equal(t, LSN(0x16B374D848), origin.CommitLSN)
	assert.Equal(t, "upstream", origin.Name)
}

func Test_Decode_Logical_Decoding_Message(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeLogicalDecodingMessage), 1}
	frame = pgio.AppendUint64(frame, 0x16B374D848)
	frame = appendCString(frame, "app.audit")
	frame = pgio.AppendUint32(frame, 7)
	frame = append(frame, "payload"...)

	xid := uint32(778)
	msg, err := ParseXLogData(frame, &xid)
	require.NoError(t, err)

	logical, ok := msg.(*LogicalReplicationMessage)
	require.True(t, ok)
	assert.True(t, logical.IsTransactional())
	require.NotNil(t, logical.Xid)
	assert.Equal(t, uint32(778), *logical.Xid)
	assert.Equal(t, "app.audit", logical.Prefix)
	assert.Equal(t, []byte("payload"), logical.Content)
}

func Test_Decode_Rejects_Unknown_Tag(
	t *testing.T,
) {

	_, err := ParseXLogData([]byte{'Z', 1, 2, 3}, nil)
	require.Error(t, err)
	assert.IsType(t, &ProtocolError{}, err)
}

func Test_Decode_Rejects_Empty_Payload(
	t *testing.T,
) {

	_, err := ParseXLogData(nil, nil)
	require.Error(t, err)
	assert.IsType(t, &ProtocolError{}, err)
}

func Test_Decode_Rejects_Unknown_Tuple_Marker(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeInsert)}
	frame = pgio.AppendUint32(frame, 16385)
	frame = append(frame, 'N')
	frame = pgio.AppendUint16(frame, 1)
	frame = append(frame, 'x')

	_, err := ParseXLogData(frame, nil)
	require.Error(t, err)
	assert.IsType(t, &ProtocolError{}, err)
	assert.Contains(t, err.Error(), "unknown marker 'x'")
}

func Test_Decode_Rejects_Truncated_Frames(
	t *testing.T,
) {

	commitTime := time.Date(2023, 6, 12, 9, 30, 0, 0, time.UTC)

	begin := []byte{byte(MessageTypeBegin)}
	begin = pgio.AppendUint64(begin, 0x16B374D848)
	begin = pgio.AppendUint64(begin, micros(commitTime))
	begin = pgio.AppendUint32(begin, 778)

	relation := []byte{byte(MessageTypeRelation)}
	relation = pgio.AppendUint32(relation, 16385)
	relation = appendCString(relation, "public")
	relation = appendCString(relation, "orders")
	relation = append(relation, 'd')
	relation = pgio.AppendUint16(relation, 1)
	relation = append(relation, 1)
	relation = appendCString(relation, "id")
	relation = pgio.AppendUint32(relation, 20)
	relation = pgio.AppendUint32(relation, 0xFFFFFFFF)

	insert := []byte{byte(MessageTypeInsert)}
	insert = pgio.AppendUint32(insert, 16385)
	insert = append(insert, 'N')
	insert = pgio.AppendUint16(insert, 1)
	insert = appendTextColumn(insert, "some longer value")

	for _, frame := range [][]byte{begin, relation, insert} {
		for cut := 1; cut < len(frame); cut++ {
			_, err := ParseXLogData(frame[:cut], nil)
			if err == nil {
				// A truncated cstring can still terminate early; only
				// frames cut inside fixed-width fields must fail
				continue
			}
			assert.IsType(t, &ProtocolError{}, err)
		}
	}
}

func Test_Decode_Rejects_Unterminated_String(
	t *testing.T,
) {

	frame := []byte{byte(MessageTypeType)}
	frame = pgio.AppendUint32(frame, 35251)
	frame = append(frame, "public"...)

	_, err := ParseXLogData(frame, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null terminated")
}
