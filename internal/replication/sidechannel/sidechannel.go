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
	"context"
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/noctarius/postgres-event-streamer/spi/pgtypes"
	"github.com/noctarius/postgres-event-streamer/spi/sidechannel"
	"github.com/noctarius/postgres-event-streamer/spi/version"
)

type sideChannel struct {
	logger    *logging.Logger
	pgxConfig *pgx.ConnConfig
}

func NewSideChannel(
	pgxConfig *pgx.ConnConfig,
) (sidechannel.SideChannel, error) {

	logger, err := logging.NewLogger("SideChannel")
	if err != nil {
		return nil, err
	}

	return &sideChannel{
		logger:    logger,
		pgxConfig: pgxConfig,
	}, nil
}

func (sc *sideChannel) HasTablePrivilege(
	username, schemaName, tableName string, grant sidechannel.TableGrant,
) (access bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(
			queryCheckUserTablePrivilege,
			username,
			fmt.Sprintf("%s.%s", schemaName, tableName),
			string(grant),
		).Scan(&access)
	})
	return
}

func (sc *sideChannel) GetSystemInformation() (databaseName, systemId string, timeline int32, err error) {
	if err := sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryReadSystemInformation).Scan(&databaseName, &systemId, &timeline)
	}); err != nil {
		return databaseName, systemId, timeline, errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) GetWalLevel() (walLevel string, err error) {
	walLevel = "unknown"
	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryConfiguredWalLevel).Scan(&walLevel)
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) GetPostgresVersion() (pgVersion version.PostgresVersion, err error) {
	if err = sc.newSession(time.Second*10, func(session *session) error {
		var v string
		if err := session.queryRow(queryPostgreSqlVersion).Scan(&v); err != nil {
			return err
		}
		pgVersion, err = version.ParsePostgresVersion(v)
		if err != nil {
			return err
		}
		return nil
	}); err != nil {
		return 0, errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) CreatePublication(
	publicationName string,
) (success bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		_, err := session.exec(
			fmt.Sprintf(queryTemplateCreatePublication, quoteIdentifier(publicationName)),
		)
		if e, ok := err.(*pgconn.PgError); ok {
			if e.Code == pgerrcode.DuplicateObject {
				success = true
				return nil
			}
		}
		if err != nil {
			return err
		}
		success = true
		sc.logger.Infof("Created publication %s", publicationName)
		return nil
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ExistsPublication(
	publicationName string,
) (found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryCheckPublicationExists, publicationName).Scan(&found)
	})
	if err == pgx.ErrNoRows {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) DropPublication(
	publicationName string,
) error {

	return sc.newSession(time.Second*10, func(session *session) error {
		_, err := session.exec(
			fmt.Sprintf(queryTemplateDropPublication, quoteIdentifier(publicationName)),
		)
		if e, ok := err.(*pgconn.PgError); ok {
			if e.Code == pgerrcode.UndefinedObject {
				return nil
			}
		}
		if err == nil {
			sc.logger.Infof("Dropped publication %s", publicationName)
		}
		if err != nil {
			err = errors.Wrap(err, 0)
		}
		return err
	})
}

func (sc *sideChannel) ReadPublishedTables(
	publicationName string,
) (tables []string, err error) {

	if err := sc.newSession(time.Second*20, func(session *session) error {
		return session.queryFunc(func(row pgx.Row) error {
			var schemaName, tableName string
			if err := row.Scan(&schemaName, &tableName); err != nil {
				return errors.Wrap(err, 0)
			}
			tables = append(tables, fmt.Sprintf("%s.%s", schemaName, tableName))
			return nil
		}, queryReadPublishedTables, publicationName)
	}); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return tables, nil
}

func (sc *sideChannel) ReadReplicaIdentity(
	schemaName, tableName string,
) (pgtypes.ReplicaIdentity, error) {

	var replicaIdentity pgtypes.ReplicaIdentity
	if err := sc.newSession(time.Second*10, func(session *session) error {
		var val string
		if err := session.queryRow(queryReadReplicaIdentity, schemaName, tableName).Scan(&val); err != nil {
			return err
		}
		replicaIdentity = pgtypes.AsReplicaIdentity(val)
		return nil
	}); err != nil {
		return pgtypes.UNKNOWN, errors.Wrap(err, 0)
	}
	return replicaIdentity, nil
}

func (sc *sideChannel) ReadReplicationSlot(
	slotName string,
) (pluginName, slotType string, restartLsn, confirmedFlushLsn pgtypes.LSN, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		var restart, confirmed string
		if err := session.queryRow(queryReadReplicationSlot, slotName).Scan(
			&pluginName, &slotType, &restart, &confirmed,
		); err != nil {
			return err
		}
		lsn, err := pglogrepl.ParseLSN(restart)
		if err != nil {
			return errors.Wrap(err, 0)
		}
		restartLsn = pgtypes.LSN(lsn)
		lsn, err = pglogrepl.ParseLSN(confirmed)
		if err != nil {
			return errors.Wrap(err, 0)
		}
		confirmedFlushLsn = pgtypes.LSN(lsn)
		return nil
	})
	if err == pgx.ErrNoRows {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ExistsReplicationSlot(
	slotName string,
) (found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryCheckReplicationSlotExists, slotName).Scan(&found)
	})
	if err == pgx.ErrNoRows {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) newSession(
	timeout time.Duration, fn func(session *session) error,
) error {

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	connection, err := pgx.ConnectConfig(ctx, sc.pgxConfig)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %v", err)
	}
	defer connection.Close(context.Background())

	s := &session{
		connection: connection,
		ctx:        ctx,
		cancel:     cancel,
	}

	defer func() {
		s.cancel()
	}()

	return fn(s)
}

func quoteIdentifier(
	identifier string,
) string {

	return pgx.Identifier{identifier}.Sanitize()
}

type rowFunction = func(
	row pgx.Row,
) error

type session struct {
	connection *pgx.Conn
	ctx        context.Context
	cancel     func()
}

func (s *session) queryFunc(
	fn rowFunction, query string, args ...any,
) error {

	rows, err := s.connection.Query(s.ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (s *session) queryRow(
	query string, args ...any,
) pgx.Row {

	return s.connection.QueryRow(s.ctx, query, args...)
}

func (s *session) exec(
	query string, args ...any,
) (pgconn.CommandTag, error) {

	return s.connection.Exec(s.ctx, query, args...)
}
