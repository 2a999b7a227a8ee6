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

// ParseXLogData decodes the payload of one XLogData frame into its
// typed message. The decode is pure: no connection state, no side
// effects, errors are always *ProtocolError.
func ParseXLogData(
	data []byte, lastTransactionId *uint32,
) (Message, error) {

	if len(data) == 0 {
		return nil, protocolErrorf("empty xlog data payload")
	}

	var decoder messageDecoder
	msgType := MessageType(data[0])
	switch msgType {
	case MessageTypeBegin:
		decoder = new(BeginMessage)
	case MessageTypeCommit:
		decoder = new(CommitMessage)
	case MessageTypeOrigin:
		decoder = new(OriginMessage)
	case MessageTypeRelation:
		decoder = new(RelationMessage)
	case MessageTypeType:
		decoder = new(TypeMessage)
	case MessageTypeInsert:
		decoder = new(InsertMessage)
	case MessageTypeUpdate:
		decoder = new(UpdateMessage)
	case MessageTypeDelete:
		decoder = new(DeleteMessage)
	case MessageTypeTruncate:
		decoder = new(TruncateMessage)
	case MessageTypeLogicalDecodingMessage:
		decoder = new(LogicalReplicationMessage)
	default:
		return nil, protocolErrorf("unknown message tag '%c' (0x%02x)", data[0], data[0])
	}

	if err := decoder.Decode(data[1:]); err != nil {
		return nil, err
	}

	// Transactional logical decoding messages inherit the transaction
	// id of the surrounding Begin message
	if logRepMsg, ok := decoder.(*LogicalReplicationMessage); ok {
		if logRepMsg.IsTransactional() && lastTransactionId != nil {
			xid := *lastTransactionId
			logRepMsg.Xid = &xid
		}
	}

	return decoder, nil
}
