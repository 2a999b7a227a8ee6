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
	"errors"
	"time"

	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/internal/typemanager"
	"github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/schema"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
)

// pendingRow is a row frame parked until the schema of its relation
// arrives on the stream.
type pendingRow struct {
	lsn pgtypes.LSN
	msg pgtypes.Message
}

// TransactionAssembler correlates the flat frame sequence into change
// events. It tracks the enclosing transaction (Begin..Commit), feeds
// schema frames into the type manager, and parks row frames whose
// relation hasn't been announced yet.
type TransactionAssembler struct {
	logger      *logging.Logger
	typeManager *typemanager.TypeManager

	streamName   string
	databaseName string
	tombstone    bool

	emitInsert   bool
	emitUpdate   bool
	emitDelete   bool
	emitTruncate bool
	emitMessage  bool

	inTransaction bool
	transactionId uint32
	commitLSN     pgtypes.LSN
	commitTime    time.Time

	pendingRows map[uint32][]pendingRow
}

func NewTransactionAssembler(
	c *config.Config, typeManager *typemanager.TypeManager, databaseName string,
) (*TransactionAssembler, error) {

	logger, err := logging.NewLogger("TransactionAssembler")
	if err != nil {
		return nil, err
	}

	return &TransactionAssembler{
		logger:      logger,
		typeManager: typeManager,

		streamName:   config.GetOrDefault(c, config.PropertyTopicPrefix, "postgres"),
		databaseName: databaseName,
		tombstone:    config.GetOrDefault(c, config.PropertySinkTombstone, false),

		emitInsert:   config.GetOrDefault(c, config.PropertyPostgresqlEventsInsert, true),
		emitUpdate:   config.GetOrDefault(c, config.PropertyPostgresqlEventsUpdate, true),
		emitDelete:   config.GetOrDefault(c, config.PropertyPostgresqlEventsDelete, true),
		emitTruncate: config.GetOrDefault(c, config.PropertyPostgresqlEventsTruncate, true),
		emitMessage:  config.GetOrDefault(c, config.PropertyPostgresqlEventsMessage, false),

		pendingRows: make(map[uint32][]pendingRow),
	}, nil
}

// Reset drops all transaction state and parked rows. Called before a
// reconnect, together with clearing the relation cache, since the
// restarted stream replays from the confirmed position.
func (ta *TransactionAssembler) Reset() {
	ta.inTransaction = false
	ta.transactionId = 0
	ta.commitLSN = 0
	ta.commitTime = time.Time{}
	ta.pendingRows = make(map[uint32][]pendingRow)
}

// Handle processes one decoded frame and returns the change events it
// produced. Most frames produce zero or one event; a Relation frame
// releasing parked rows can produce several.
func (ta *TransactionAssembler) Handle(
	lsn pgtypes.LSN, msg pgtypes.Message,
) ([]*stream.ChangeEvent, error) {

	switch m := msg.(type) {
	case *pgtypes.BeginMessage:
		return nil, ta.handleBegin(m)

	case *pgtypes.CommitMessage:
		return nil, ta.handleCommit(m)

	case *pgtypes.RelationMessage:
		return ta.handleRelation(m)

	case *pgtypes.TypeMessage:
		ta.typeManager.RegisterType(m)
		return nil, nil

	case *pgtypes.OriginMessage:
		ta.logger.Debugf("Transaction originates from '%s' at %s", m.Name, m.CommitLSN)
		return nil, nil

	case *pgtypes.TruncateMessage:
		return ta.handleTruncate(lsn, m)

	case *pgtypes.LogicalReplicationMessage:
		return ta.handleLogicalMessage(lsn, m)

	case *pgtypes.InsertMessage:
		return ta.handleRow(lsn, m, m.RelationID)

	case *pgtypes.UpdateMessage:
		return ta.handleRow(lsn, m, m.RelationID)

	case *pgtypes.DeleteMessage:
		return ta.handleRow(lsn, m, m.RelationID)
	}

	return nil, &pgtypes.ProtocolError{
		Reason: "unexpected message type " + msg.Type().String(),
	}
}

func (ta *TransactionAssembler) handleBegin(
	msg *pgtypes.BeginMessage,
) error {

	if ta.inTransaction {
		return &pgtypes.ProtocolError{
			Reason: "Begin inside an open transaction",
		}
	}
	ta.inTransaction = true
	ta.transactionId = msg.Xid
	ta.commitLSN = msg.FinalLSN
	ta.commitTime = msg.CommitTime
	return nil
}

func (ta *TransactionAssembler) handleCommit(
	msg *pgtypes.CommitMessage,
) error {

	if !ta.inTransaction {
		return &pgtypes.ProtocolError{
			Reason: "Commit without an open transaction",
		}
	}
	if len(ta.pendingRows) > 0 {
		// The relation never arrived inside its own transaction, the
		// stream is irrecoverably out of sync
		return &pgtypes.ProtocolError{
			Reason: "transaction committed with unresolved relations",
		}
	}
	ta.inTransaction = false
	return nil
}

func (ta *TransactionAssembler) handleRelation(
	msg *pgtypes.RelationMessage,
) ([]*stream.ChangeEvent, error) {

	ta.typeManager.RegisterRelation(msg)

	parked, present := ta.pendingRows[msg.RelationID]
	if !present {
		return nil, nil
	}
	delete(ta.pendingRows, msg.RelationID)

	// Replay parked rows in arrival order now that the schema is known
	events := make([]*stream.ChangeEvent, 0, len(parked))
	for _, row := range parked {
		replayed, err := ta.Handle(row.lsn, row.msg)
		if err != nil {
			return nil, err
		}
		events = append(events, replayed...)
	}
	return events, nil
}

func (ta *TransactionAssembler) handleTruncate(
	lsn pgtypes.LSN, msg *pgtypes.TruncateMessage,
) ([]*stream.ChangeEvent, error) {

	if !ta.inTransaction {
		// Tolerated: no state depends on a truncate, but outside a
		// transaction it carries no commit context to emit from
		ta.logger.Warnf(
			"Ignoring truncate outside a transaction (relations %v)", msg.RelationIDs,
		)
		return nil, nil
	}

	ta.logger.Infof(
		"Relations truncated (option %d): %v", msg.Option, msg.RelationIDs,
	)

	if !ta.emitTruncate {
		return nil, nil
	}

	// The protocol announces truncated relations ahead of the Truncate
	// frame in the same transaction, so every id resolves here
	events := make([]*stream.ChangeEvent, 0, len(msg.RelationIDs))
	for _, relationId := range msg.RelationIDs {
		relation, err := ta.typeManager.Relation(relationId)
		if err != nil {
			return nil, err
		}
		events = append(events, ta.newChangeEvent(
			lsn, relation, schema.OP_TRUNCATE, nil,
			schema.TruncateEvent(ta.source(lsn, relation)),
		))
	}
	return events, nil
}

func (ta *TransactionAssembler) handleLogicalMessage(
	lsn pgtypes.LSN, msg *pgtypes.LogicalReplicationMessage,
) ([]*stream.ChangeEvent, error) {

	if !ta.emitMessage {
		return nil, nil
	}

	// Non-transactional messages are valid outside Begin..Commit and
	// carry no transaction context
	var transactionId *uint32
	commitTime := time.Now()
	if msg.IsTransactional() {
		if !ta.inTransaction {
			return nil, &pgtypes.ProtocolError{
				Reason: "transactional message outside a transaction",
			}
		}
		transactionId = &ta.transactionId
		commitTime = ta.commitTime
	}

	source := schema.Source(
		msg.LSN, commitTime, ta.streamName, ta.databaseName, "", "", transactionId,
	)
	event := &stream.ChangeEvent{
		Operation:  schema.OP_MESSAGE,
		Key:        schema.MessageKey(msg.Prefix),
		Envelope:   schema.MessageEvent(msg.Prefix, msg.Content, source),
		LSN:        lsn,
		CommitTime: commitTime,
	}
	if transactionId != nil {
		event.Xid = *transactionId
	}
	return []*stream.ChangeEvent{event}, nil
}

func (ta *TransactionAssembler) handleRow(
	lsn pgtypes.LSN, msg pgtypes.Message, relationId uint32,
) ([]*stream.ChangeEvent, error) {

	if !ta.inTransaction {
		return nil, &pgtypes.ProtocolError{
			Reason: "row message without an open transaction",
		}
	}

	relation, err := ta.typeManager.Relation(relationId)
	if err != nil {
		unknownRelation := &pgtypes.UnknownRelationError{}
		if errors.As(err, &unknownRelation) {
			ta.logger.Debugf(
				"Parking row for unannounced relation %d", relationId,
			)
			ta.pendingRows[relationId] = append(
				ta.pendingRows[relationId], pendingRow{lsn: lsn, msg: msg},
			)
			return nil, nil
		}
		return nil, err
	}

	var event *stream.ChangeEvent
	switch m := msg.(type) {
	case *pgtypes.InsertMessage:
		event, err = ta.assembleInsert(lsn, relation, m)
	case *pgtypes.UpdateMessage:
		event, err = ta.assembleUpdate(lsn, relation, m)
	case *pgtypes.DeleteMessage:
		event, err = ta.assembleDelete(lsn, relation, m)
	}
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	return []*stream.ChangeEvent{event}, nil
}

func (ta *TransactionAssembler) assembleInsert(
	lsn pgtypes.LSN, relation *pgtypes.RelationMessage, msg *pgtypes.InsertMessage,
) (*stream.ChangeEvent, error) {

	if !ta.emitInsert {
		return nil, nil
	}

	after, err := ta.typeManager.DecodeTuple(relation, msg.Tuple)
	if err != nil {
		return nil, err
	}

	return ta.newChangeEvent(
		lsn, relation, schema.OP_CREATE, keyColumns(relation, after),
		schema.CreateEvent(after, ta.source(lsn, relation)),
	), nil
}

func (ta *TransactionAssembler) assembleUpdate(
	lsn pgtypes.LSN, relation *pgtypes.RelationMessage, msg *pgtypes.UpdateMessage,
) (*stream.ChangeEvent, error) {

	if !ta.emitUpdate {
		return nil, nil
	}

	before, err := ta.typeManager.DecodeTuple(relation, msg.OldTuple)
	if err != nil {
		return nil, err
	}
	after, err := ta.typeManager.DecodeTuple(relation, msg.NewTuple)
	if err != nil {
		return nil, err
	}

	return ta.newChangeEvent(
		lsn, relation, schema.OP_UPDATE, keyColumns(relation, after),
		schema.UpdateEvent(before, after, ta.source(lsn, relation)),
	), nil
}

func (ta *TransactionAssembler) assembleDelete(
	lsn pgtypes.LSN, relation *pgtypes.RelationMessage, msg *pgtypes.DeleteMessage,
) (*stream.ChangeEvent, error) {

	if !ta.emitDelete {
		return nil, nil
	}

	before, err := ta.typeManager.DecodeTuple(relation, msg.OldTuple)
	if err != nil {
		return nil, err
	}

	return ta.newChangeEvent(
		lsn, relation, schema.OP_DELETE, keyColumns(relation, before),
		schema.DeleteEvent(before, ta.source(lsn, relation), ta.tombstone),
	), nil
}

func (ta *TransactionAssembler) newChangeEvent(
	lsn pgtypes.LSN, relation *pgtypes.RelationMessage,
	operation schema.Operation, key, envelope schema.Struct,
) *stream.ChangeEvent {

	return &stream.ChangeEvent{
		Operation:  operation,
		Namespace:  relation.Namespace,
		Table:      relation.RelationName,
		Key:        key,
		Envelope:   envelope,
		LSN:        lsn,
		Xid:        ta.transactionId,
		CommitTime: ta.commitTime,
	}
}

// source builds the shared source block. Events are tagged with the
// commit LSN and commit time from the enclosing Begin frame.
func (ta *TransactionAssembler) source(
	_ pgtypes.LSN, relation *pgtypes.RelationMessage,
) schema.Struct {

	transactionId := ta.transactionId
	return schema.Source(
		ta.commitLSN, ta.commitTime, ta.streamName, ta.databaseName,
		relation.Namespace, relation.RelationName, &transactionId,
	)
}

// keyColumns projects the replica identity key columns out of a row
// image.
func keyColumns(
	relation *pgtypes.RelationMessage, values schema.Struct,
) schema.Struct {

	if values == nil {
		return nil
	}
	key := make(schema.Struct)
	for _, column := range relation.Columns {
		if !column.IsKey() {
			continue
		}
		if value, present := values[column.Name]; present {
			key[column.Name] = value
		}
	}
	return key
}
