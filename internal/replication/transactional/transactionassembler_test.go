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

package transactional

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/postgres-event-streamer/internal/typemanager"
	"github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCommitTime = time.Date(2023, 6, 12, 9, 30, 0, 0, time.UTC)

func newTestAssembler(
	t *testing.T,
) *TransactionAssembler {

	c := &config.Config{}
	c.Topic.Prefix = "testdb"
	c.PostgreSQL.Events.Message = boolPtr(true)

	typeManager, err := typemanager.NewTypeManager(c)
	require.NoError(t, err)

	assembler, err := NewTransactionAssembler(c, typeManager, "postgres")
	require.NoError(t, err)
	return assembler
}

func boolPtr(
	b bool,
) *bool {

	return &b
}

func customersRelation() *pgtypes.RelationMessage {
	return &pgtypes.RelationMessage{
		RelationID:      16385,
		Namespace:       "public",
		RelationName:    "customers",
		ReplicaIdentity: 'd',
		ColumnNum:       4,
		Columns: []*pgtypes.RelationColumn{
			{Flags: 1, Name: "_id", DataType: pgtype.VarcharOID, TypeModifier: -1},
			{Name: "name", DataType: pgtype.TextOID, TypeModifier: -1},
			{Name: "credit_limit", DataType: pgtype.Int4OID, TypeModifier: -1},
			{Name: "_deleted", DataType: pgtype.BoolOID, TypeModifier: -1},
		},
	}
}

func beginMessage() *pgtypes.BeginMessage {
	msg := &pgtypes.BeginMessage{
		FinalLSN:   pgtypes.LSN(0x16B374D848),
		CommitTime: testCommitTime,
		Xid:        778,
	}
	msg.SetType(pgtypes.MessageTypeBegin)
	return msg
}

func commitMessage() *pgtypes.CommitMessage {
	msg := &pgtypes.CommitMessage{
		CommitLSN:         pgtypes.LSN(0x16B374D848),
		TransactionEndLSN: pgtypes.LSN(0x16B374D890),
		CommitTime:        testCommitTime,
	}
	msg.SetType(pgtypes.MessageTypeCommit)
	return msg
}

func textColumn(
	value string,
) *pgtypes.TupleDataColumn {

	return &pgtypes.TupleDataColumn{
		DataType: pgtypes.TupleDataTypeText,
		Data:     []byte(value),
	}
}

func customersTuple(
	id, name, creditLimit, deleted string,
) *pgtypes.TupleData {

	return &pgtypes.TupleData{
		ColumnNum: 4,
		Columns: []*pgtypes.TupleDataColumn{
			textColumn(id), textColumn(name), textColumn(creditLimit), textColumn(deleted),
		},
	}
}

func Test_Assemble_Insert_Event(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	events, err := assembler.Handle(pgtypes.LSN(0x16B374D810), beginMessage())
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = assembler.Handle(pgtypes.LSN(0x16B374D818), customersRelation())
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = assembler.Handle(pgtypes.LSN(0x16B374D820), &pgtypes.InsertMessage{
		RelationID: 16385,
		Tuple:      customersTuple("1001", "Max Mustermann", "5000", "f"),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, schema.OP_CREATE, event.Operation)
	assert.Equal(t, "public", event.Namespace)
	assert.Equal(t, "customers", event.Table)
	assert.Equal(t, pgtypes.LSN(0x16B374D820), event.LSN)
	assert.Equal(t, uint32(778), event.Xid)
	assert.Equal(t, testCommitTime, event.CommitTime)
	assert.Equal(t, schema.Struct{"_id": "1001"}, event.Key)

	envelope := event.Envelope
	assert.Equal(t, "c", envelope[schema.FieldNameOperation])
	assert.NotContains(t, envelope, schema.FieldNameBefore)
	assert.Equal(t, schema.Struct{
		"_id":          "1001",
		"name":         "Max Mustermann",
		"credit_limit": int64(5000),
		"_deleted":     false,
	}, envelope[schema.FieldNameAfter])

	source := envelope[schema.FieldNameSource].(schema.Struct)
	assert.Equal(t, "0.1.0", source[schema.FieldNameVersion])
	assert.Equal(t, "pgoutput-decoder", source[schema.FieldNameConnector])
	assert.Equal(t, "testdb", source[schema.FieldNameName])
	assert.Equal(t, testCommitTime.UnixMilli(), source[schema.FieldNameTimestamp])
	assert.Equal(t, false, source[schema.FieldNameSnapshot])
	assert.Equal(t, "postgres", source[schema.FieldNameDatabase])
	assert.Equal(t, "public", source[schema.FieldNameSchema])
	assert.Equal(t, "customers", source[schema.FieldNameTable])
	assert.Equal(t, pgtypes.LSN(0x16B374D848).String(), source[schema.FieldNameLSN])
	assert.Equal(t, int64(778), source[schema.FieldNameTxId])

	events, err = assembler.Handle(pgtypes.LSN(0x16B374D848), commitMessage())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func Test_Assemble_Update_Event_With_Old_Tuple(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), customersRelation())
	require.NoError(t, err)

	events, err := assembler.Handle(pgtypes.LSN(3), &pgtypes.UpdateMessage{
		RelationID:   16385,
		OldTupleType: 'O',
		OldTuple:     customersTuple("1001", "Max Mustermann", "5000", "f"),
		NewTuple:     customersTuple("1001", "Max Mustermann", "7500", "f"),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	envelope := events[0].Envelope
	assert.Equal(t, "u", envelope[schema.FieldNameOperation])
	assert.Equal(t, int64(5000),
		envelope[schema.FieldNameBefore].(schema.Struct)["credit_limit"])
	assert.Equal(t, int64(7500),
		envelope[schema.FieldNameAfter].(schema.Struct)["credit_limit"])
}

func Test_Assemble_Update_Omits_Unchanged_Toast_From_Before(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), customersRelation())
	require.NoError(t, err)

	oldTuple := &pgtypes.TupleData{
		ColumnNum: 4,
		Columns: []*pgtypes.TupleDataColumn{
			textColumn("1001"),
			{DataType: pgtypes.TupleDataTypeToast},
			textColumn("5000"),
			textColumn("f"),
		},
	}
	events, err := assembler.Handle(pgtypes.LSN(3), &pgtypes.UpdateMessage{
		RelationID:   16385,
		OldTupleType: 'O',
		OldTuple:     oldTuple,
		NewTuple:     customersTuple("1001", "Erika Musterfrau", "5000", "f"),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	before := events[0].Envelope[schema.FieldNameBefore].(schema.Struct)
	_, present := before["name"]
	assert.False(t, present)
	assert.Equal(t, "1001", before["_id"])
}

func Test_Assemble_Update_Without_Old_Tuple_Has_No_Before(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), customersRelation())
	require.NoError(t, err)

	events, err := assembler.Handle(pgtypes.LSN(3), &pgtypes.UpdateMessage{
		RelationID: 16385,
		NewTuple:   customersTuple("1001", "Max Mustermann", "5000", "f"),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Envelope, schema.FieldNameBefore)
}

func Test_Assemble_Delete_Event(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), customersRelation())
	require.NoError(t, err)

	keyOnly := &pgtypes.TupleData{
		ColumnNum: 4,
		Columns: []*pgtypes.TupleDataColumn{
			textColumn("1001"),
			{DataType: pgtypes.TupleDataTypeNull},
			{DataType: pgtypes.TupleDataTypeNull},
			{DataType: pgtypes.TupleDataTypeNull},
		},
	}
	events, err := assembler.Handle(pgtypes.LSN(3), &pgtypes.DeleteMessage{
		RelationID:   16385,
		OldTupleType: 'K',
		OldTuple:     keyOnly,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, schema.OP_DELETE, event.Operation)
	assert.Equal(t, schema.Struct{"_id": "1001"}, event.Key)
	assert.Equal(t, "d", event.Envelope[schema.FieldNameOperation])
	assert.NotContains(t, event.Envelope, schema.FieldNameAfter)
}

func Test_Row_Before_Relation_Is_Parked_And_Replayed(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)

	// Row arrives before its schema announcement
	events, err := assembler.Handle(pgtypes.LSN(2), &pgtypes.InsertMessage{
		RelationID: 16385,
		Tuple:      customersTuple("1001", "Max Mustermann", "5000", "f"),
	})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = assembler.Handle(pgtypes.LSN(3), &pgtypes.InsertMessage{
		RelationID: 16385,
		Tuple:      customersTuple("1002", "Erika Musterfrau", "2500", "f"),
	})
	require.NoError(t, err)
	assert.Empty(t, events)

	// Schema arrival releases the parked rows in order
	events, err = assembler.Handle(pgtypes.LSN(4), customersRelation())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, schema.Struct{"_id": "1001"}, events[0].Key)
	assert.Equal(t, pgtypes.LSN(2), events[0].LSN)
	assert.Equal(t, schema.Struct{"_id": "1002"}, events[1].Key)
	assert.Equal(t, pgtypes.LSN(3), events[1].LSN)
}

func Test_Commit_With_Unresolved_Relations_Fails(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), &pgtypes.InsertMessage{
		RelationID: 16385,
		Tuple:      customersTuple("1001", "Max Mustermann", "5000", "f"),
	})
	require.NoError(t, err)

	_, err = assembler.Handle(pgtypes.LSN(3), commitMessage())
	require.Error(t, err)
	assert.IsType(t, &pgtypes.ProtocolError{}, err)
}

func Test_Row_Outside_Transaction_Fails(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), customersRelation())
	require.NoError(t, err)

	_, err = assembler.Handle(pgtypes.LSN(2), &pgtypes.InsertMessage{
		RelationID: 16385,
		Tuple:      customersTuple("1001", "Max Mustermann", "5000", "f"),
	})
	require.Error(t, err)
	assert.IsType(t, &pgtypes.ProtocolError{}, err)
}

func Test_Logical_Message_Event(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	msg := &pgtypes.LogicalReplicationMessage{
		Flags:   0,
		LSN:     pgtypes.LSN(42),
		Prefix:  "app.audit",
		Content: []byte("payload"),
	}
	msg.SetType(pgtypes.MessageTypeLogicalDecodingMessage)

	events, err := assembler.Handle(pgtypes.LSN(42), msg)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, schema.OP_MESSAGE, event.Operation)
	assert.Equal(t, schema.Struct{"prefix": "app.audit"}, event.Key)
	message := event.Envelope[schema.FieldNameMessage].(schema.Struct)
	assert.Equal(t, "app.audit", message[schema.FieldNamePrefix])
	assert.Equal(t,
		base64.StdEncoding.EncodeToString([]byte("payload")),
		message[schema.FieldNameContent],
	)
}

func Test_Assemble_Truncate_Event(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), customersRelation())
	require.NoError(t, err)

	events, err := assembler.Handle(pgtypes.LSN(3), &pgtypes.TruncateMessage{
		RelationNum: 1,
		Option:      0,
		RelationIDs: []uint32{16385},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, schema.OP_TRUNCATE, event.Operation)
	assert.Equal(t, "public", event.Namespace)
	assert.Equal(t, "customers", event.Table)
	assert.Nil(t, event.Key)
	assert.Equal(t, "t", event.Envelope[schema.FieldNameOperation])
	assert.NotContains(t, event.Envelope, schema.FieldNameBefore)
	assert.NotContains(t, event.Envelope, schema.FieldNameAfter)
}

func Test_Truncate_Outside_Transaction_Is_Ignored(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), customersRelation())
	require.NoError(t, err)

	events, err := assembler.Handle(pgtypes.LSN(2), &pgtypes.TruncateMessage{
		RelationNum: 1,
		RelationIDs: []uint32{16385},
	})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func Test_Reset_Drops_Transaction_State(
	t *testing.T,
) {

	assembler := newTestAssembler(t)

	_, err := assembler.Handle(pgtypes.LSN(1), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(2), &pgtypes.InsertMessage{
		RelationID: 16385,
		Tuple:      customersTuple("1001", "Max Mustermann", "5000", "f"),
	})
	require.NoError(t, err)

	assembler.Reset()

	// A fresh Begin is accepted and parked rows are gone
	_, err = assembler.Handle(pgtypes.LSN(3), beginMessage())
	require.NoError(t, err)
	_, err = assembler.Handle(pgtypes.LSN(4), commitMessage())
	require.NoError(t, err)
}
