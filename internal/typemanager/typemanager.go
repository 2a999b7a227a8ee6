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

package typemanager

import (
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/postgres-event-streamer/internal/containers"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/encoding"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
)

// Converter transforms the raw wire representation of a single column
// into its canonical Go value.
type Converter func(oid uint32, data []byte) (any, error)

// namedType is a non-builtin type announced through a Type message.
type namedType struct {
	namespace string
	name      string
}

// TypeManager owns the per-session schema knowledge: the relation
// cache fed by Relation messages, the extension types announced by
// Type messages, and the converter registry mapping type oids to
// canonical Go values.
type TypeManager struct {
	logger      *logging.Logger
	jsonDecoder *encoding.JsonDecoder

	typeMap       *pgtype.Map
	failurePolicy config.DecodeFailurePolicyType

	relations  *containers.RelationCache[uint32, *pgtypes.RelationMessage]
	namedTypes map[uint32]namedType
	converters map[uint32]Converter

	mutex sync.RWMutex
}

func NewTypeManager(
	c *config.Config,
) (*TypeManager, error) {

	logger, err := logging.NewLogger("TypeManager")
	if err != nil {
		return nil, err
	}

	failurePolicy := config.GetOrDefault(
		c, config.PropertyPostgresqlDecodingFailurePolicy, config.DecodeFailureAbort,
	)

	typeManager := &TypeManager{
		logger:      logger,
		jsonDecoder: encoding.NewJsonDecoderWithConfig(c),

		typeMap:       pgtype.NewMap(),
		failurePolicy: failurePolicy,

		relations:  containers.NewRelationCache[uint32, *pgtypes.RelationMessage](),
		namedTypes: make(map[uint32]namedType),
		converters: make(map[uint32]Converter),
	}
	typeManager.registerBuiltinConverters()

	return typeManager, nil
}

// RegisterRelation stores (or replaces) the schema of a relation. The
// server resends a Relation message whenever the schema changes, so
// replace-on-upsert is the only mode.
func (tm *TypeManager) RegisterRelation(
	relation *pgtypes.RelationMessage,
) {

	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.relations.Set(relation.RelationID, relation)
}

// Relation resolves the cached schema for the given relation oid. A
// missing entry yields an UnknownRelationError, which callers treat as
// transient (the schema message may not have arrived yet).
func (tm *TypeManager) Relation(
	relationId uint32,
) (*pgtypes.RelationMessage, error) {

	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	relation, present := tm.relations.Get(relationId)
	if !present {
		return nil, &pgtypes.UnknownRelationError{RelationID: relationId}
	}
	return relation, nil
}

// RegisterType records an extension type announced through a Type
// message. Geometry types get a structural converter, everything else
// decodes as its textual representation.
func (tm *TypeManager) RegisterType(
	msg *pgtypes.TypeMessage,
) {

	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.namedTypes[msg.DataType] = namedType{
		namespace: msg.Namespace,
		name:      msg.Name,
	}
	if converter := postgisConverter(msg.Name); converter != nil {
		tm.converters[msg.DataType] = converter
	}
	tm.logger.Debugf(
		"Registered extension type %s.%s (oid %d)", msg.Namespace, msg.Name, msg.DataType,
	)
}

// ClearRelations drops all cached relation schemas. Happens before a
// reconnect since relation oids may have been reassigned and the
// server resends schemas anyway.
func (tm *TypeManager) ClearRelations() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.relations.Clear()
}

// Convert transforms one column value to its canonical representation.
// Null and unchanged toast columns never reach this function.
func (tm *TypeManager) Convert(
	oid uint32, column *pgtypes.TupleDataColumn,
) (any, error) {

	if column.IsBinary() {
		return tm.convertBinary(oid, column.Data)
	}

	tm.mutex.RLock()
	converter, present := tm.converters[oid]
	tm.mutex.RUnlock()
	if present {
		return converter(oid, column.Data)
	}

	// Unknown oids keep their textual representation. Extension types
	// without structural knowledge land here as well.
	return string(column.Data), nil
}

// DecodeTuple converts a row image into a map keyed by column name in
// schema order. Unchanged toast columns are omitted entirely, null
// columns map to nil. A column count mismatch between tuple and cached
// schema means the decoder lost sync with the server.
func (tm *TypeManager) DecodeTuple(
	relation *pgtypes.RelationMessage, tupleData *pgtypes.TupleData,
) (map[string]any, error) {

	if tupleData == nil {
		return nil, nil
	}

	if int(tupleData.ColumnNum) != len(relation.Columns) {
		return nil, &pgtypes.ProtocolError{
			Reason: "tuple column count doesn't match relation schema",
		}
	}

	values := make(map[string]any, len(relation.Columns))
	for i, column := range tupleData.Columns {
		schemaColumn := relation.Columns[i]

		if column.IsUnchangedToast() {
			continue
		}
		if column.IsNull() {
			values[schemaColumn.Name] = nil
			continue
		}

		value, err := tm.Convert(schemaColumn.DataType, column)
		if err != nil {
			decodeError := &pgtypes.DecodeError{
				Relation: relation.RelationName,
				Column:   schemaColumn.Name,
				Oid:      schemaColumn.DataType,
				Cause:    err,
			}
			if tm.failurePolicy == config.DecodeFailureRawValue && !column.IsBinary() {
				tm.logger.Warnf(
					"Keeping raw value for undecodable column: %s", decodeError,
				)
				values[schemaColumn.Name] = string(column.Data)
				continue
			}
			return nil, decodeError
		}
		values[schemaColumn.Name] = value
	}
	return values, nil
}
