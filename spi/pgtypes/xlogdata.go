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
	"github.com/jackc/pglogrepl"
)

// XLogData is one replication frame as received from the server,
// together with the transaction markers of the enclosing transaction
// (zero while outside of a transaction).
type XLogData struct {
	pglogrepl.XLogData

	DatabaseName string
	LastBegin    LSN
	LastCommit   LSN
	Xid          uint32
}

// EndPosition is the WAL position right after this frame, which is
// the value acknowledged to the server once the frame is processed.
func (xld XLogData) EndPosition() LSN {
	return LSN(xld.WALStart + pglogrepl.LSN(len(xld.WALData)))
}
