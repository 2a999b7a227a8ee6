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
	"fmt"
)

// ProtocolError signals a malformed or unexpected frame in the
// logical replication stream. It is fatal to the current connection;
// the session manager reacts by reconnecting, never by skipping the
// offending frame.
type ProtocolError struct {
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol error: %s: %s", e.Reason, e.Cause)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

func protocolErrorf(
	format string, args ...any,
) *ProtocolError {

	return &ProtocolError{
		Reason: fmt.Sprintf(format, args...),
	}
}

// UnknownRelationError reports a row message referencing a relation
// whose schema hasn't been observed in this session yet. This is
// expected transiently right after a reconnect; callers defer the row
// until the schema message arrives instead of treating it as terminal.
type UnknownRelationError struct {
	RelationID uint32
}

func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("unknown relation id %d", e.RelationID)
}

// DecodeError reports a single column value that couldn't be
// converted to its canonical representation. Depending on the
// configured failure policy the surrounding event is either aborted
// or emitted with the raw textual value of the offending column.
type DecodeError struct {
	Relation string
	Column   string
	Oid      uint32
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf(
		"decoding column '%s' (oid %d) of relation '%s' failed: %s",
		e.Column, e.Oid, e.Relation, e.Cause,
	)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// InvariantViolationError reports an internal invariant break, such
// as an LSN moving backwards. It indicates server or codec
// misbehavior and is surfaced immediately, never retried.
type InvariantViolationError struct {
	Message string
}

func (e *InvariantViolationError) Error() string {
	return e.Message
}

func InvariantViolationf(
	format string, args ...any,
) *InvariantViolationError {

	return &InvariantViolationError{
		Message: fmt.Sprintf(format, args...),
	}
}
