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

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noctarius/postgres-event-streamer/internal/logging"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	databaseName   = "app"
	databaseSchema = "app"
	postgresUser   = "postgres"
	postgresPass   = "postgres"
	appUser        = "app"
	appPass        = "app"
	replUser       = "repl_user"
	replPass       = "repl_user"
)

type ConfigProvider struct {
	host string
	port int
}

func (c *ConfigProvider) ReplicationConnConfig() (*pgx.ConnConfig, error) {
	return pgx.ParseConfig(
		fmt.Sprintf("postgres://%s:%s@%s:%d/%s", replUser, replPass, c.host, c.port, databaseName),
	)
}

func (c *ConfigProvider) UserConnConfig() (*pgxpool.Config, error) {
	return pgxpool.ParseConfig(
		fmt.Sprintf("postgres://%s:%s@%s:%d/%s", appUser, appPass, c.host, c.port, databaseName),
	)
}

func SetupPostgresContainer() (testcontainers.Container, *ConfigProvider, error) {
	containerRequest := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Cmd:          []string{"-c", "fsync=off", "-c", "wal_level=logical"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
		Env: map[string]string{
			"POSTGRES_DB":       databaseName,
			"POSTGRES_PASSWORD": postgresPass,
			"POSTGRES_USER":     postgresUser,
		},
	}

	logger, err := logging.NewLogger("testcontainers")
	if err != nil {
		return nil, nil, err
	}
	postgresLogger, err := logging.NewLogger("testcontainers-postgres")
	if err != nil {
		return nil, nil, err
	}

	container, err := testcontainers.GenericContainer(
		context.Background(),
		testcontainers.GenericContainerRequest{
			ContainerRequest: containerRequest,
			Started:          true,
			Logger:           logger,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	host, err := container.Host(context.Background())
	if err != nil {
		container.Terminate(context.Background())
		return nil, nil, err
	}

	port, err := container.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		container.Terminate(context.Background())
		return nil, nil, err
	}

	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		postgresUser, postgresPass, host, port.Int(), databaseName)

	config, err := pgx.ParseConfig(connString)
	if err != nil {
		container.Terminate(context.Background())
		return nil, nil, err
	}

	var conn *pgx.Conn
	for i := 0; ; i++ {
		conn, err = pgx.ConnectConfig(context.Background(), config)
		if err != nil {
			if i == 9 {
				_ = container.Terminate(context.Background())
				return nil, nil, err
			} else {
				time.Sleep(time.Second)
			}
		} else {
			break
		}
	}

	exec := func(query string) error {
		if _, err := conn.Exec(context.Background(), query); err != nil {
			conn.Close(context.Background())
			container.Terminate(context.Background())
			return err
		}
		return nil
	}

	// Create default user role
	postgresLogger.Verbosef("Create default user login")
	if err := exec(
		fmt.Sprintf("CREATE ROLE %s LOGIN ENCRYPTED PASSWORD '%s'", appUser, appPass),
	); err != nil {
		return nil, nil, err
	}
	postgresLogger.Verbosef("Grant permissions to default user")
	if err := exec(
		fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", databaseName, appUser),
	); err != nil {
		return nil, nil, err
	}
	postgresLogger.Verbosef("Create %s schema", databaseSchema)
	if err := exec(
		fmt.Sprintf("CREATE SCHEMA %s", databaseSchema),
	); err != nil {
		return nil, nil, err
	}
	postgresLogger.Verbosef("Grant schema permissions to default user")
	if err := exec(
		fmt.Sprintf("ALTER SCHEMA %s OWNER TO %s", databaseSchema, appUser),
	); err != nil {
		return nil, nil, err
	}
	postgresLogger.Verbosef("Set default schema for default user")
	if err := exec(
		fmt.Sprintf("ALTER ROLE %s SET search_path TO %s, public", appUser, databaseSchema),
	); err != nil {
		return nil, nil, err
	}

	// Create replication user and adjust permissions
	postgresLogger.Verbosef("Create replication user login")
	if err := exec(
		fmt.Sprintf("CREATE ROLE %s LOGIN REPLICATION ENCRYPTED PASSWORD '%s'", replUser, replPass),
	); err != nil {
		return nil, nil, err
	}
	postgresLogger.Verbosef("Grant user permissions for replication user")
	if err := exec(
		fmt.Sprintf("GRANT %s TO %s", appUser, replUser),
	); err != nil {
		return nil, nil, err
	}

	// Close database setup connection when done
	conn.Close(context.Background())

	return container, &ConfigProvider{host, port.Int()}, nil
}
