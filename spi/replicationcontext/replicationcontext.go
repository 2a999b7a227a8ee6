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

package replicationcontext

import (
	"context"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
	"github.com/noctarius/postgres-event-streamer/spi/version"
)

// ReplicationContext carries the immutable session facts (system
// identification, server version, slot and publication settings) and
// the mutable stream position of one replication session.
//
// The position is a pair of WAL cursors with the invariant
// confirmed <= received. Observe advances the received cursor from the
// read loop, Confirm advances the confirmed cursor from the consumer
// side. Only confirmed positions are reported back to the server and
// persisted, a restart therefore resumes from the confirmed cursor.
// Each replication session opens a new observation epoch through
// SeedStreamPosition, since the restarted stream redelivers frames
// above the confirmed position.
type ReplicationContext interface {
	StartReplicationContext() error
	StopReplicationContext() error
	NewReplicationChannelConnection(
		ctx context.Context,
	) (*pgconn.PgConn, error)

	StateStorageManager() statestorage.Manager
	Offset() (*statestorage.Offset, error)

	SeedStreamPosition(
		lsn pgtypes.LSN,
	)
	Observe(
		lsn pgtypes.LSN,
	) error
	Confirm(
		lsn pgtypes.LSN,
	) error
	LastReceivedLSN() pgtypes.LSN
	LastConfirmedLSN() pgtypes.LSN
	StatusPayload() pglogrepl.StandbyStatusUpdate

	SetLastTransactionId(
		xid uint32,
	)
	LastTransactionId() uint32
	SetLastBeginLSN(
		lsn pgtypes.LSN,
	)
	LastBeginLSN() pgtypes.LSN
	SetLastCommitLSN(
		lsn pgtypes.LSN,
	)
	LastCommitLSN() pgtypes.LSN

	AcknowledgeMode() spiconfig.AcknowledgeModeType
	DatabaseUsername() string
	PublicationName() string
	PublicationCreate() bool
	PublicationAutoDrop() bool
	ReplicationSlotName() string
	ReplicationSlotCreate() bool
	ReplicationSlotAutoDrop() bool
	WALLevel() string
	SystemId() string
	Timeline() int32
	DatabaseName() string

	PostgresVersion() version.PostgresVersion
	IsMinimumPostgresVersion() bool
	IsPG14GE() bool
	IsLogicalReplicationEnabled() bool

	ExistsPublication(
		publicationName string,
	) (found bool, err error)
	CreatePublication(
		publicationName string,
	) (success bool, err error)
	DropPublication(
		publicationName string,
	) error
	ExistsReplicationSlot(
		slotName string,
	) (found bool, err error)
	ReadReplicationSlot(
		slotName string,
	) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error)
}
