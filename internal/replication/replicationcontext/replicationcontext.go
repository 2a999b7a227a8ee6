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
	"sync"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/replicationcontext"
	"github.com/noctarius/postgres-event-streamer/spi/sidechannel"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
	"github.com/noctarius/postgres-event-streamer/spi/version"
	"github.com/samber/lo"
)

type replicationContext struct {
	pgxConfig *pgx.ConnConfig
	logger    *logging.Logger

	sideChannel         sidechannel.SideChannel
	stateStorageManager statestorage.Manager

	acknowledgeMode         spiconfig.AcknowledgeModeType
	publicationName         string
	publicationCreate       bool
	publicationAutoDrop     bool
	replicationSlotName     string
	replicationSlotCreate   bool
	replicationSlotAutoDrop bool

	timeline     int32
	systemId     string
	databaseName string
	walLevel     string

	lsnMutex          sync.Mutex
	lastBeginLSN      pgtypes.LSN
	lastCommitLSN     pgtypes.LSN
	lastReceivedLSN   pgtypes.LSN
	lastConfirmedLSN  pgtypes.LSN
	lastTransactionId uint32

	pgVersion version.PostgresVersion
}

func NewReplicationContext(
	config *spiconfig.Config, pgxConfig *pgx.ConnConfig, stateStorageManager statestorage.Manager,
	sideChannel sidechannel.SideChannel,
) (replicationcontext.ReplicationContext, error) {

	acknowledgeMode := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlAcknowledgeMode, spiconfig.AutoAcknowledge,
	)
	publicationName := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlPublicationName, "",
	)
	publicationCreate := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlPublicationCreate, true,
	)
	publicationAutoDrop := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlPublicationAutoDrop, true,
	)
	replicationSlotName := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlReplicationSlotName, lo.RandomString(20, lo.LowerCaseLettersCharset),
	)
	replicationSlotCreate := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlReplicationSlotCreate, true,
	)
	replicationSlotAutoDrop := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlReplicationSlotAutoDrop, true,
	)

	logger, err := logging.NewLogger("ReplicationContext")
	if err != nil {
		return nil, err
	}

	replicationContext := &replicationContext{
		pgxConfig: pgxConfig,
		logger:    logger,

		sideChannel:         sideChannel,
		stateStorageManager: stateStorageManager,

		acknowledgeMode:         acknowledgeMode,
		publicationName:         publicationName,
		publicationCreate:       publicationCreate,
		publicationAutoDrop:     publicationAutoDrop,
		replicationSlotName:     replicationSlotName,
		replicationSlotCreate:   replicationSlotCreate,
		replicationSlotAutoDrop: replicationSlotAutoDrop,
	}

	pgVersion, err := sideChannel.GetPostgresVersion()
	if err != nil {
		return nil, err
	}
	replicationContext.pgVersion = pgVersion

	databaseName, systemId, timeline, err := sideChannel.GetSystemInformation()
	if err != nil {
		return nil, err
	}
	replicationContext.databaseName = databaseName
	replicationContext.systemId = systemId
	replicationContext.timeline = timeline

	walLevel, err := sideChannel.GetWalLevel()
	if err != nil {
		return nil, err
	}
	replicationContext.walLevel = walLevel

	return replicationContext, nil
}

func (rc *replicationContext) StateStorageManager() statestorage.Manager {
	return rc.stateStorageManager
}

func (rc *replicationContext) StartReplicationContext() error {
	if err := rc.stateStorageManager.Start(); err != nil {
		return err
	}

	// Seed the confirmed cursor from the persisted offset so a
	// restart never acknowledges backwards.
	offset, err := rc.Offset()
	if err != nil {
		return err
	}
	if offset != nil {
		rc.lsnMutex.Lock()
		defer rc.lsnMutex.Unlock()
		rc.lastConfirmedLSN = offset.LSN
		rc.lastReceivedLSN = offset.LSN
	}
	return nil
}

func (rc *replicationContext) StopReplicationContext() error {
	if err := rc.persistOffset(); err != nil {
		rc.logger.Warnf("failed to persist offset on shutdown: %s", err.Error())
	}
	return rc.stateStorageManager.Stop()
}

func (rc *replicationContext) Offset() (*statestorage.Offset, error) {
	offsets, err := rc.stateStorageManager.Get()
	if err != nil {
		return nil, err
	}
	if offsets == nil {
		return nil, nil
	}
	if o, present := offsets[rc.replicationSlotName]; present {
		return o, nil
	}
	return nil, nil
}

// SeedStreamPosition opens a new observation epoch. A restarted
// session replays from the restart LSN, which sits at or below the
// received cursor of the previous session whenever unconfirmed frames
// get redelivered, so the received cursor resets unconditionally.
func (rc *replicationContext) SeedStreamPosition(
	lsn pgtypes.LSN,
) {

	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	rc.lastReceivedLSN = lsn
}

// Observe advances the received cursor. The server streams WAL in
// order, a backwards observation within a session therefore means the
// session state diverged from the stream and processing must stop.
func (rc *replicationContext) Observe(
	lsn pgtypes.LSN,
) error {

	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	if lsn < rc.lastReceivedLSN {
		return pgtypes.InvariantViolationf(
			"received LSN moved backwards: %s < %s", lsn, rc.lastReceivedLSN,
		)
	}
	rc.lastReceivedLSN = lsn
	return nil
}

// Confirm advances the confirmed cursor and persists the new offset.
// The confirmed cursor can never overtake the received cursor and
// never move backwards; confirming the current position is a no-op.
func (rc *replicationContext) Confirm(
	lsn pgtypes.LSN,
) error {

	rc.lsnMutex.Lock()

	if lsn < rc.lastConfirmedLSN {
		defer rc.lsnMutex.Unlock()
		return pgtypes.InvariantViolationf(
			"confirmed LSN moved backwards: %s < %s", lsn, rc.lastConfirmedLSN,
		)
	}
	if lsn > rc.lastReceivedLSN {
		defer rc.lsnMutex.Unlock()
		return pgtypes.InvariantViolationf(
			"confirmed LSN overtakes received LSN: %s > %s", lsn, rc.lastReceivedLSN,
		)
	}
	if lsn == rc.lastConfirmedLSN {
		rc.lsnMutex.Unlock()
		return nil
	}
	rc.lastConfirmedLSN = lsn
	rc.lsnMutex.Unlock()

	return rc.persistOffset()
}

func (rc *replicationContext) LastReceivedLSN() pgtypes.LSN {
	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	return rc.lastReceivedLSN
}

func (rc *replicationContext) LastConfirmedLSN() pgtypes.LSN {
	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	return rc.lastConfirmedLSN
}

// StatusPayload assembles the standby status update reported to the
// server. Write, flush, and apply positions all carry the confirmed
// cursor, unconfirmed frames remain eligible for redelivery.
func (rc *replicationContext) StatusPayload() pglogrepl.StandbyStatusUpdate {
	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	reportedLSN := pglogrepl.LSN(0)
	if rc.lastConfirmedLSN > 0 {
		reportedLSN = pglogrepl.LSN(rc.lastConfirmedLSN + 1)
	}
	return pglogrepl.StandbyStatusUpdate{
		WALWritePosition: reportedLSN,
		WALFlushPosition: reportedLSN,
		WALApplyPosition: reportedLSN,
	}
}

func (rc *replicationContext) persistOffset() error {
	rc.lsnMutex.Lock()
	confirmedLSN := rc.lastConfirmedLSN
	rc.lsnMutex.Unlock()

	if confirmedLSN == 0 {
		return nil
	}

	offset := &statestorage.Offset{
		Timestamp: time.Now(),
		LSN:       confirmedLSN,
	}
	return rc.stateStorageManager.Set(rc.replicationSlotName, offset)
}

func (rc *replicationContext) SetLastTransactionId(
	xid uint32,
) {

	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	rc.lastTransactionId = xid
}

func (rc *replicationContext) LastTransactionId() uint32 {
	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	return rc.lastTransactionId
}

func (rc *replicationContext) SetLastBeginLSN(
	lsn pgtypes.LSN,
) {

	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	rc.lastBeginLSN = lsn
}

func (rc *replicationContext) LastBeginLSN() pgtypes.LSN {
	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	return rc.lastBeginLSN
}

func (rc *replicationContext) SetLastCommitLSN(
	lsn pgtypes.LSN,
) {

	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	rc.lastCommitLSN = lsn
}

func (rc *replicationContext) LastCommitLSN() pgtypes.LSN {
	rc.lsnMutex.Lock()
	defer rc.lsnMutex.Unlock()

	return rc.lastCommitLSN
}

func (rc *replicationContext) AcknowledgeMode() spiconfig.AcknowledgeModeType {
	return rc.acknowledgeMode
}

func (rc *replicationContext) DatabaseUsername() string {
	return rc.pgxConfig.User
}

func (rc *replicationContext) PublicationName() string {
	return rc.publicationName
}

func (rc *replicationContext) PublicationCreate() bool {
	return rc.publicationCreate
}

func (rc *replicationContext) PublicationAutoDrop() bool {
	return rc.publicationAutoDrop
}

func (rc *replicationContext) ReplicationSlotName() string {
	return rc.replicationSlotName
}

func (rc *replicationContext) ReplicationSlotCreate() bool {
	return rc.replicationSlotCreate
}

func (rc *replicationContext) ReplicationSlotAutoDrop() bool {
	return rc.replicationSlotAutoDrop
}

func (rc *replicationContext) WALLevel() string {
	return rc.walLevel
}

func (rc *replicationContext) SystemId() string {
	return rc.systemId
}

func (rc *replicationContext) Timeline() int32 {
	return rc.timeline
}

func (rc *replicationContext) DatabaseName() string {
	return rc.databaseName
}

func (rc *replicationContext) PostgresVersion() version.PostgresVersion {
	return rc.pgVersion
}

func (rc *replicationContext) IsMinimumPostgresVersion() bool {
	return rc.pgVersion >= version.PG_MIN_VERSION
}

func (rc *replicationContext) IsPG14GE() bool {
	return rc.pgVersion >= version.PG_14_VERSION
}

func (rc *replicationContext) IsLogicalReplicationEnabled() bool {
	return rc.walLevel == "logical"
}

// ----> SideChannel functions

func (rc *replicationContext) ExistsPublication(
	publicationName string,
) (found bool, err error) {

	return rc.sideChannel.ExistsPublication(publicationName)
}

func (rc *replicationContext) CreatePublication(
	publicationName string,
) (success bool, err error) {

	return rc.sideChannel.CreatePublication(publicationName)
}

func (rc *replicationContext) DropPublication(
	publicationName string,
) error {

	return rc.sideChannel.DropPublication(publicationName)
}

func (rc *replicationContext) ExistsReplicationSlot(
	slotName string,
) (found bool, err error) {

	return rc.sideChannel.ExistsReplicationSlot(slotName)
}

func (rc *replicationContext) ReadReplicationSlot(
	slotName string,
) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error) {

	return rc.sideChannel.ReadReplicationSlot(slotName)
}

func (rc *replicationContext) NewReplicationChannelConnection(
	ctx context.Context,
) (*pgconn.PgConn, error) {

	connConfig := rc.pgxConfig.Config.Copy()
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = make(map[string]string)
	}
	connConfig.RuntimeParams["replication"] = "database"
	return pgconn.ConnectConfig(ctx, connConfig)
}
