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

package replicationconnection

import (
	"testing"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/internal/statestorages/dummy"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/replicationcontext"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testReplicationContext struct {
	replicationcontext.ReplicationContext

	stateStorageManager statestorage.Manager
	replicationSlotName string
	readReplicationSlot func(slotName string) (
		pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error,
	)
}

func (t *testReplicationContext) ReplicationSlotName() string {
	return t.replicationSlotName
}

func (t *testReplicationContext) Offset() (*statestorage.Offset, error) {
	offsets, err := t.stateStorageManager.Get()
	if err != nil {
		return nil, err
	}
	if offsets == nil {
		return nil, nil
	}
	if o, present := offsets[t.replicationSlotName]; present {
		return o, nil
	}
	return nil, nil
}

func (t *testReplicationContext) ReadReplicationSlot(
	slotName string,
) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error) {

	return t.readReplicationSlot(slotName)
}

func newTestReplicationConnection(
	t *testing.T, replicationContext replicationcontext.ReplicationContext,
) *ReplicationConnection {

	logger, err := logging.NewLogger("ReplicationConnection")
	require.NoError(t, err)

	return &ReplicationConnection{
		logger:             logger,
		replicationContext: replicationContext,
		identification: pglogrepl.IdentifySystemResult{
			SystemID: "123456789-987654321",
			Timeline: 1,
			XLogPos:  10000,
			DBName:   "test",
		},
	}
}

func slotReader(
	pluginName, slotType string, confirmedFlushLsn pgtypes.LSN,
) func(slotName string) (string, string, pgtypes.LSN, pgtypes.LSN, error) {

	return func(_ string) (string, string, pgtypes.LSN, pgtypes.LSN, error) {
		return pluginName, slotType, confirmedFlushLsn, confirmedFlushLsn, nil
	}
}

func storedOffset(
	t *testing.T, stateStorageManager statestorage.Manager, slotName string, lsn pgtypes.LSN,
) {

	offset := &statestorage.Offset{
		Timestamp: time.Now(),
		LSN:       lsn,
	}
	require.NoError(t, stateStorageManager.Set(slotName, offset))
}

func Test_ReplicationConnection_locateRestartLSN_empty(
	t *testing.T,
) {

	replicationContext := &testReplicationContext{
		replicationSlotName: "test",
		stateStorageManager: statestorage.NewStateStorageManager(dummy.NewDummyStateStorage()),
		readReplicationSlot: slotReader("pgoutput", "logical", 0),
	}
	replicationConnection := newTestReplicationConnection(t, replicationContext)

	restartPoint, err := replicationConnection.locateRestartLSN()
	require.NoError(t, err)
	assert.Equal(t, pgtypes.LSN(10000), restartPoint)
}

func Test_ReplicationConnection_locateRestartLSN_from_offset(
	t *testing.T,
) {

	stateStorageManager := statestorage.NewStateStorageManager(dummy.NewDummyStateStorage())
	replicationContext := &testReplicationContext{
		replicationSlotName: "test",
		stateStorageManager: stateStorageManager,
		readReplicationSlot: slotReader("pgoutput", "logical", 0),
	}
	storedOffset(t, stateStorageManager, "test", 20000)
	replicationConnection := newTestReplicationConnection(t, replicationContext)

	restartPoint, err := replicationConnection.locateRestartLSN()
	require.NoError(t, err)
	assert.Equal(t, pgtypes.LSN(20000), restartPoint)
}

func Test_ReplicationConnection_locateRestartLSN_from_confirmed_flush_LSN_larger(
	t *testing.T,
) {

	stateStorageManager := statestorage.NewStateStorageManager(dummy.NewDummyStateStorage())
	replicationContext := &testReplicationContext{
		replicationSlotName: "test",
		stateStorageManager: stateStorageManager,
		readReplicationSlot: slotReader("pgoutput", "logical", 21000),
	}
	storedOffset(t, stateStorageManager, "test", 20000)
	replicationConnection := newTestReplicationConnection(t, replicationContext)

	restartPoint, err := replicationConnection.locateRestartLSN()
	require.NoError(t, err)
	assert.Equal(t, pgtypes.LSN(21000), restartPoint)
}

func Test_ReplicationConnection_locateRestartLSN_from_confirmed_flush_LSN_smaller(
	t *testing.T,
) {

	stateStorageManager := statestorage.NewStateStorageManager(dummy.NewDummyStateStorage())
	replicationContext := &testReplicationContext{
		replicationSlotName: "test",
		stateStorageManager: stateStorageManager,
		readReplicationSlot: slotReader("pgoutput", "logical", 19000),
	}
	storedOffset(t, stateStorageManager, "test", 20000)
	replicationConnection := newTestReplicationConnection(t, replicationContext)

	restartPoint, err := replicationConnection.locateRestartLSN()
	require.NoError(t, err)
	assert.Equal(t, pgtypes.LSN(20000), restartPoint)
}

func Test_ReplicationConnection_locateRestartLSN_error_physical_slot(
	t *testing.T,
) {

	stateStorageManager := statestorage.NewStateStorageManager(dummy.NewDummyStateStorage())
	replicationContext := &testReplicationContext{
		replicationSlotName: "test",
		stateStorageManager: stateStorageManager,
		readReplicationSlot: slotReader("pgoutput", "physical", 19000),
	}
	storedOffset(t, stateStorageManager, "test", 20000)
	replicationConnection := newTestReplicationConnection(t, replicationContext)

	_, err := replicationConnection.locateRestartLSN()
	require.Error(t, err)
	assert.Contains(
		t, err.Error(),
		"illegal slot type found for existing replication slot 'test', expected logical but found physical",
	)
}

func Test_ReplicationConnection_locateRestartLSN_error_plugin_name(
	t *testing.T,
) {

	stateStorageManager := statestorage.NewStateStorageManager(dummy.NewDummyStateStorage())
	replicationContext := &testReplicationContext{
		replicationSlotName: "test",
		stateStorageManager: stateStorageManager,
		readReplicationSlot: slotReader("json", "logical", 19000),
	}
	storedOffset(t, stateStorageManager, "test", 20000)
	replicationConnection := newTestReplicationConnection(t, replicationContext)

	_, err := replicationConnection.locateRestartLSN()
	require.Error(t, err)
	assert.Contains(
		t, err.Error(),
		"illegal plugin name found for existing replication slot 'test', expected pgoutput but found json",
	)
}
