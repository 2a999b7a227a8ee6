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

// region System Information Queries
const queryReadSystemInformation = `
SELECT current_database(), pcs.system_identifier, pcc.timeline_id
FROM pg_control_system() pcs, pg_control_checkpoint() pcc`

const queryPostgreSqlVersion = `SHOW SERVER_VERSION`

const queryConfiguredWalLevel = `SHOW WAL_LEVEL`

const queryCheckUserTablePrivilege = `SELECT HAS_TABLE_PRIVILEGE($1, $2, $3)`

// endregion

// region Publication Related Queries
const queryTemplateCreatePublication = `CREATE PUBLICATION %s FOR ALL TABLES`

const queryTemplateDropPublication = `DROP PUBLICATION IF EXISTS %s`

const queryCheckPublicationExists = `SELECT TRUE FROM pg_publication WHERE pubname = $1`

const queryReadPublishedTables = `
SELECT pt.schemaname, pt.tablename
FROM pg_catalog.pg_publication_tables pt
WHERE pt.pubname = $1`

// endregion

// region Replication Slot Related Queries
const queryReadReplicationSlot = `
SELECT plugin, slot_type, restart_lsn, confirmed_flush_lsn
FROM pg_catalog.pg_replication_slots prs
WHERE slot_name = $1`

const queryCheckReplicationSlotExists = `
SELECT TRUE
FROM pg_catalog.pg_replication_slots prs
WHERE slot_name = $1`

// endregion

const queryReadReplicaIdentity = `
SELECT c.relreplident
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2`
