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

package sidechannel

import (
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/version"
)

type TableGrant string

const (
	Select     TableGrant = "select"
	Insert     TableGrant = "insert"
	Update     TableGrant = "update"
	Delete     TableGrant = "delete"
	Truncate   TableGrant = "truncate"
	References TableGrant = "references"
	Trigger    TableGrant = "trigger"
)

// SideChannel runs catalog queries against the database on a plain
// (non-replication) connection. The replication protocol connection
// cannot execute SQL, hence the separate channel.
type SideChannel interface {
	HasTablePrivilege(
		username, schemaName, tableName string, grant TableGrant,
	) (access bool, err error)
	GetSystemInformation() (
		databaseName, systemId string, timeline int32, err error,
	)
	GetWalLevel() (walLevel string, err error)
	GetPostgresVersion() (pgVersion version.PostgresVersion, err error)
	CreatePublication(
		publicationName string,
	) (success bool, err error)
	ExistsPublication(
		publicationName string,
	) (found bool, err error)
	DropPublication(
		publicationName string,
	) error
	ReadPublishedTables(
		publicationName string,
	) (tables []string, err error)
	ReadReplicaIdentity(
		schemaName, tableName string,
	) (identity pgtypes.ReplicaIdentity, err error)
	ReadReplicationSlot(
		slotName string,
	) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error)
	ExistsReplicationSlot(
		slotName string,
	) (found bool, err error)
}
