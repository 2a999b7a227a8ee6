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
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// MessageType is the leading tag byte of a pgoutput frame.
type MessageType byte

const (
	MessageTypeBegin                  MessageType = 'B'
	MessageTypeCommit                 MessageType = 'C'
	MessageTypeOrigin                 MessageType = 'O'
	MessageTypeRelation               MessageType = 'R'
	MessageTypeType                   MessageType = 'Y'
	MessageTypeInsert                 MessageType = 'I'
	MessageTypeUpdate                 MessageType = 'U'
	MessageTypeDelete                 MessageType = 'D'
	MessageTypeTruncate               MessageType = 'T'
	MessageTypeLogicalDecodingMessage MessageType = 'M'
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeBegin:
		return "Begin"
	case MessageTypeCommit:
		return "Commit"
	case MessageTypeOrigin:
		return "Origin"
	case MessageTypeRelation:
		return "Relation"
	case MessageTypeType:
		return "Type"
	case MessageTypeInsert:
		return "Insert"
	case MessageTypeUpdate:
		return "Update"
	case MessageTypeDelete:
		return "Delete"
	case MessageTypeTruncate:
		return "Truncate"
	case MessageTypeLogicalDecodingMessage:
		return "LogicalDecodingMessage"
	}
	return fmt.Sprintf("Unknown(%c)", byte(t))
}

// Message is a decoded pgoutput frame.
type Message interface {
	Type() MessageType
}

type messageDecoder interface {
	Message
	Decode(src []byte) error
}

// BeginMessage opens a group of changes of one committed transaction.
type BeginMessage struct {
	baseMessage
	// FinalLSN is the LSN of the transaction's commit record
	FinalLSN LSN
	// CommitTime is the commit timestamp of the transaction
	CommitTime time.Time
	// Xid is the transaction id
	Xid uint32
}

func (m *BeginMessage) Decode(
	src []byte,
) error {

	if len(src) < 20 {
		return m.lengthError("BeginMessage", 20, len(src))
	}
	var low, used int
	m.FinalLSN, used = m.decodeLSN(src)
	low += used
	m.CommitTime, used = m.decodeTime(src[low:])
	low += used
	m.Xid = binary.BigEndian.Uint32(src[low:])

	m.SetType(MessageTypeBegin)

	return nil
}

func (m BeginMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s finalLSN:%s commitTime:%s xid:%d}",
		m.Type(), m.FinalLSN, m.CommitTime, m.Xid,
	)
}

// CommitMessage closes the group of changes opened by the matching
// BeginMessage.
type CommitMessage struct {
	baseMessage
	// Flags currently unused (must be 0)
	Flags uint8
	// CommitLSN is the LSN of the commit record
	CommitLSN LSN
	// TransactionEndLSN is the end LSN of the transaction
	TransactionEndLSN LSN
	// CommitTime is the commit timestamp of the transaction
	CommitTime time.Time
}

func (m *CommitMessage) Decode(
	src []byte,
) error {

	if len(src) < 25 {
		return m.lengthError("CommitMessage", 25, len(src))
	}
	var low, used int
	m.Flags = src[0]
	low += 1
	m.CommitLSN, used = m.decodeLSN(src[low:])
	low += used
	m.TransactionEndLSN, used = m.decodeLSN(src[low:])
	low += used
	m.CommitTime, _ = m.decodeTime(src[low:])

	m.SetType(MessageTypeCommit)

	return nil
}

func (m CommitMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s flags:%d commitLSN:%s transactionEndLSN:%s commitTime:%s}",
		m.Type(), m.Flags, m.CommitLSN, m.TransactionEndLSN, m.CommitTime,
	)
}

// OriginMessage names the upstream origin a transaction was
// replicated from. Informational only.
type OriginMessage struct {
	baseMessage
	// CommitLSN is the LSN of the commit record on the origin server
	CommitLSN LSN
	// Name of the origin
	Name string
}

func (m *OriginMessage) Decode(
	src []byte,
) error {

	if len(src) < 9 {
		return m.lengthError("OriginMessage", 9, len(src))
	}
	var low, used int
	m.CommitLSN, used = m.decodeLSN(src)
	low += used
	m.Name, used = m.decodeString(src[low:])
	if used < 0 {
		return m.decodeStringError("OriginMessage", "Name")
	}

	m.SetType(MessageTypeOrigin)

	return nil
}

func (m OriginMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s name:%s commitLSN:%s}", m.Type(), m.Name, m.CommitLSN,
	)
}

// RelationColumn describes one column of a replicated relation.
type RelationColumn struct {
	// Flags is 1 when the column is part of the replica identity key
	Flags uint8
	// Name of the column
	Name string
	// DataType is the type oid of the column
	DataType uint32
	// TypeModifier is the type specific modifier (atttypmod)
	TypeModifier int32
}

// IsKey reports whether the column belongs to the relation's replica
// identity key.
func (rc *RelationColumn) IsKey() bool {
	return rc.Flags&1 == 1
}

// RelationMessage carries the schema of a relation. It is sent before
// the first row message of that relation in a session and re-sent
// whenever the schema changes.
type RelationMessage struct {
	baseMessage
	// RelationID is the server-assigned oid of the relation
	RelationID uint32
	// Namespace (schema) of the relation
	Namespace string
	// RelationName of the relation
	RelationName string
	// ReplicaIdentity setting of the relation (same as relreplident)
	ReplicaIdentity uint8
	// ColumnNum is the number of columns
	ColumnNum uint16
	// Columns in schema order
	Columns []*RelationColumn
}

func (m *RelationMessage) Decode(
	src []byte,
) error {

	if len(src) < 7 {
		return m.lengthError("RelationMessage", 7, len(src))
	}
	var low, used int
	m.RelationID, used = m.decodeUint32(src)
	low += used
	m.Namespace, used = m.decodeString(src[low:])
	if used < 0 {
		return m.decodeStringError("RelationMessage", "Namespace")
	}
	low += used
	m.RelationName, used = m.decodeString(src[low:])
	if used < 0 {
		return m.decodeStringError("RelationMessage", "RelationName")
	}
	low += used
	if len(src) < low+3 {
		return m.lengthError("RelationMessage", low+3, len(src))
	}
	m.ReplicaIdentity = src[low]
	low++
	m.ColumnNum, used = m.decodeUint16(src[low:])
	low += used

	m.Columns = make([]*RelationColumn, 0, m.ColumnNum)
	for i := 0; i < int(m.ColumnNum); i++ {
		if len(src) < low+1 {
			return m.lengthError("RelationMessage", low+1, len(src))
		}
		column := new(RelationColumn)
		column.Flags = src[low]
		low++
		column.Name, used = m.decodeString(src[low:])
		if used < 0 {
			return m.decodeStringError("RelationMessage", fmt.Sprintf("Column[%d].Name", i))
		}
		low += used
		if len(src) < low+8 {
			return m.lengthError("RelationMessage", low+8, len(src))
		}
		column.DataType, used = m.decodeUint32(src[low:])
		low += used
		column.TypeModifier, used = m.decodeInt32(src[low:])
		low += used
		m.Columns = append(m.Columns, column)
	}

	m.SetType(MessageTypeRelation)

	return nil
}

func (m RelationMessage) String() string {
	builder := strings.Builder{}
	builder.WriteString("{")
	builder.WriteString(fmt.Sprintf("messageType:%s ", m.Type()))
	builder.WriteString(fmt.Sprintf("relationId:%d ", m.RelationID))
	builder.WriteString(fmt.Sprintf("namespace:%s ", m.Namespace))
	builder.WriteString(fmt.Sprintf("relationName:%s ", m.RelationName))
	builder.WriteString(fmt.Sprintf("replicaIdentity:%d ", m.ReplicaIdentity))
	builder.WriteString(fmt.Sprintf("columnNum:%d ", m.ColumnNum))
	builder.WriteString("columns:[")
	for i, column := range m.Columns {
		builder.WriteString("{")
		builder.WriteString(fmt.Sprintf("name:%s ", column.Name))
		builder.WriteString(fmt.Sprintf("flags:%d ", column.Flags))
		builder.WriteString(fmt.Sprintf("dataType:%d ", column.DataType))
		builder.WriteString(fmt.Sprintf("typeModifier:%d", column.TypeModifier))
		builder.WriteString("}")
		if i < len(m.Columns)-1 {
			builder.WriteString(" ")
		}
	}
	builder.WriteString("]}")
	return builder.String()
}

// TypeMessage announces a non-builtin data type used by a following
// RelationMessage.
type TypeMessage struct {
	baseMessage
	// DataType is the oid of the announced type
	DataType uint32
	// Namespace (schema) of the type
	Namespace string
	// Name of the type
	Name string
}

func (m *TypeMessage) Decode(
	src []byte,
) error {

	if len(src) < 6 {
		return m.lengthError("TypeMessage", 6, len(src))
	}
	var low, used int
	m.DataType, used = m.decodeUint32(src)
	low += used
	m.Namespace, used = m.decodeString(src[low:])
	if used < 0 {
		return m.decodeStringError("TypeMessage", "Namespace")
	}
	low += used
	m.Name, used = m.decodeString(src[low:])
	if used < 0 {
		return m.decodeStringError("TypeMessage", "Name")
	}

	m.SetType(MessageTypeType)

	return nil
}

func (m TypeMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s namespace:%s name:%s dataType:%d}",
		m.Type(), m.Namespace, m.Name, m.DataType,
	)
}

// InsertMessage carries the new tuple of an inserted row.
type InsertMessage struct {
	baseMessage
	// RelationID of the relation the row belongs to
	RelationID uint32
	// Tuple is the newly inserted row image
	Tuple *TupleData
}

func (m *InsertMessage) Decode(
	src []byte,
) error {

	if len(src) < 7 {
		return m.lengthError("InsertMessage", 7, len(src))
	}
	var low, used int
	m.RelationID, used = m.decodeUint32(src)
	low += used
	if src[low] != 'N' {
		return protocolErrorf(
			"InsertMessage expected new tuple marker 'N', got '%c'", src[low],
		)
	}
	low++
	tuple, _, err := decodeTupleData(src[low:])
	if err != nil {
		return err
	}
	m.Tuple = tuple

	m.SetType(MessageTypeInsert)

	return nil
}

func (m InsertMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s relationId:%d newTuple:%s}", m.Type(), m.RelationID, m.Tuple,
	)
}

// UpdateMessage carries the old (when the replica identity requires
// it) and new tuple of an updated row.
type UpdateMessage struct {
	baseMessage
	// RelationID of the relation the row belongs to
	RelationID uint32
	// OldTupleType is 'O' (full old row), 'K' (key columns only)
	// or 0 when no old tuple was transmitted
	OldTupleType uint8
	// OldTuple is the previous row image, nil without old tuple
	OldTuple *TupleData
	// NewTuple is the updated row image
	NewTuple *TupleData
}

func (m *UpdateMessage) Decode(
	src []byte,
) error {

	if len(src) < 7 {
		return m.lengthError("UpdateMessage", 7, len(src))
	}
	var low, used int
	m.RelationID, used = m.decodeUint32(src)
	low += used

	switch src[low] {
	case 'O', 'K':
		m.OldTupleType = src[low]
		low++
		oldTuple, consumed, err := decodeTupleData(src[low:])
		if err != nil {
			return err
		}
		m.OldTuple = oldTuple
		low += consumed
		if len(src) < low+1 {
			return m.lengthError("UpdateMessage", low+1, len(src))
		}
		fallthrough
	case 'N':
		if src[low] != 'N' {
			return protocolErrorf(
				"UpdateMessage expected new tuple marker 'N', got '%c'", src[low],
			)
		}
		low++
		newTuple, _, err := decodeTupleData(src[low:])
		if err != nil {
			return err
		}
		m.NewTuple = newTuple
	default:
		return protocolErrorf(
			"UpdateMessage unexpected tuple marker '%c'", src[low],
		)
	}

	m.SetType(MessageTypeUpdate)

	return nil
}

func (m UpdateMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s relationId:%d oldTuple:%s newTuple:%s}",
		m.Type(), m.RelationID, m.OldTuple, m.NewTuple,
	)
}

// DeleteMessage carries the old tuple (or its key columns) of a
// deleted row.
type DeleteMessage struct {
	baseMessage
	// RelationID of the relation the row belongs to
	RelationID uint32
	// OldTupleType is 'O' (full old row) or 'K' (key columns only)
	OldTupleType uint8
	// OldTuple is the deleted row image
	OldTuple *TupleData
}

func (m *DeleteMessage) Decode(
	src []byte,
) error {

	if len(src) < 7 {
		return m.lengthError("DeleteMessage", 7, len(src))
	}
	var low, used int
	m.RelationID, used = m.decodeUint32(src)
	low += used
	if src[low] != 'O' && src[low] != 'K' {
		return protocolErrorf(
			"DeleteMessage expected old tuple marker 'O' or 'K', got '%c'", src[low],
		)
	}
	m.OldTupleType = src[low]
	low++
	tuple, _, err := decodeTupleData(src[low:])
	if err != nil {
		return err
	}
	m.OldTuple = tuple

	m.SetType(MessageTypeDelete)

	return nil
}

func (m DeleteMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s relationId:%d oldTuple:%s}", m.Type(), m.RelationID, m.OldTuple,
	)
}

// TruncateMessage reports a truncation of one or more relations.
type TruncateMessage struct {
	baseMessage
	// RelationNum is the number of truncated relations
	RelationNum uint32
	// Option bits, 1 for CASCADE, 2 for RESTART IDENTITY
	Option uint8
	// RelationIDs of the truncated relations
	RelationIDs []uint32
}

const (
	TruncateOptionCascade         = uint8(1)
	TruncateOptionRestartIdentity = uint8(2)
)

func (m *TruncateMessage) Decode(
	src []byte,
) error {

	if len(src) < 5 {
		return m.lengthError("TruncateMessage", 5, len(src))
	}
	var low, used int
	m.RelationNum, used = m.decodeUint32(src)
	low += used
	m.Option = src[low]
	low++
	if len(src) < low+int(m.RelationNum)*4 {
		return m.lengthError("TruncateMessage", low+int(m.RelationNum)*4, len(src))
	}
	m.RelationIDs = make([]uint32, 0, m.RelationNum)
	for i := 0; i < int(m.RelationNum); i++ {
		var relationId uint32
		relationId, used = m.decodeUint32(src[low:])
		low += used
		m.RelationIDs = append(m.RelationIDs, relationId)
	}

	m.SetType(MessageTypeTruncate)

	return nil
}

func (m TruncateMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s option:%d relationNum:%d relationIds:[%s]}",
		m.Type(), m.Option, m.RelationNum, strings.Join(
			lo.Map(m.RelationIDs, func(element uint32, _ int) string {
				return strconv.FormatUint(uint64(element), 10)
			}), ", ",
		),
	)
}

// LogicalReplicationMessage is a generic logical decoding message
// emitted server-side through pg_logical_emit_message.
type LogicalReplicationMessage struct {
	baseMessage
	// Flags is either 0 (non-transactional) or 1 (transactional)
	Flags uint8
	// Xid is the transaction id (if transactional logical replication message)
	Xid *uint32
	// LSN is the LSN of the logical replication message
	LSN LSN
	// Prefix is the prefix of the logical replication message
	Prefix string
	// Content is the content of the logical replication message
	Content []byte
}

func (m *LogicalReplicationMessage) Decode(
	src []byte,
) error {

	if len(src) < 14 {
		return m.lengthError("LogicalReplicationMessage", 14, len(src))
	}
	var low, used int
	m.Flags = src[0]
	low += 1
	m.LSN, used = m.decodeLSN(src[low:])
	low += used
	m.Prefix, used = m.decodeString(src[low:])
	if used < 0 {
		return m.decodeStringError("LogicalReplicationMessage", "Prefix")
	}
	low += used
	if len(src) < low+4 {
		return m.lengthError("LogicalReplicationMessage", low+4, len(src))
	}
	contentLength := binary.BigEndian.Uint32(src[low:])
	low += 4
	if len(src) < low+int(contentLength) {
		return m.lengthError("LogicalReplicationMessage", low+int(contentLength), len(src))
	}
	m.Content = src[low : low+int(contentLength)]

	m.SetType(MessageTypeLogicalDecodingMessage)

	return nil
}

func (m *LogicalReplicationMessage) IsTransactional() bool {
	return m.Flags == 1
}

func (m LogicalReplicationMessage) String() string {
	return fmt.Sprintf(
		"{messageType:%s flags:%d lsn:%s prefix:%s contentLength:%d}",
		m.Type(), m.Flags, m.LSN, m.Prefix, len(m.Content),
	)
}
