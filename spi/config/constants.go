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

package config

const (
	PropertyPostgresqlConnection              = "postgresql.connection"
	PropertyPostgresqlPassword                = "postgresql.password"
	PropertyPostgresqlPublicationName         = "postgresql.publication.name"
	PropertyPostgresqlPublicationCreate       = "postgresql.publication.create"
	PropertyPostgresqlPublicationAutoDrop     = "postgresql.publication.autodrop"
	PropertyPostgresqlReplicationSlotName     = "postgresql.replicationslot.name"
	PropertyPostgresqlReplicationSlotCreate   = "postgresql.replicationslot.create"
	PropertyPostgresqlReplicationSlotAutoDrop = "postgresql.replicationslot.autodrop"
	PropertyPostgresqlAcknowledgeMode         = "postgresql.acknowledge.mode"
	PropertyPostgresqlDecodingFailurePolicy   = "postgresql.decoding.failurepolicy"
	PropertyPostgresqlReconnectMaxRetries     = "postgresql.reconnect.maxretries"
	PropertyPostgresqlReconnectInitialDelay   = "postgresql.reconnect.initialdelay"
	PropertyPostgresqlReconnectMaxDelay       = "postgresql.reconnect.maxdelay"
	PropertyPostgresqlStatusInterval          = "postgresql.status.interval"

	PropertyPostgresqlEventsInsert   = "postgresql.events.insert"
	PropertyPostgresqlEventsUpdate   = "postgresql.events.update"
	PropertyPostgresqlEventsDelete   = "postgresql.events.delete"
	PropertyPostgresqlEventsTruncate = "postgresql.events.truncate"
	PropertyPostgresqlEventsMessage  = "postgresql.events.message"

	PropertySink          = "sink.type"
	PropertySinkTombstone = "sink.tombstone"

	PropertyStatsEnabled        = "stats.enabled"
	PropertyStatsPort           = "stats.port"
	PropertyRuntimeStatsEnabled = "stats.runtime.enabled"

	PropertyStateStorageType     = "statestorage.type"
	PropertyFileStateStoragePath = "statestorage.file.path"

	PropertyEventBufferCapacity      = "internal.eventbuffer.capacity"
	PropertyEncodingCustomReflection = "internal.encoding.customreflection"

	PropertyNamingStrategy = "topic.namingstrategy.type"
	PropertyTopicPrefix    = "topic.prefix"

	PropertyKafkaBrokers       = "sink.kafka.brokers"
	PropertyKafkaIdempotent    = "sink.kafka.idempotent"
	PropertyKafkaSaslEnabled   = "sink.kafka.sasl.enabled"
	PropertyKafkaSaslUser      = "sink.kafka.sasl.user"
	PropertyKafkaSaslPassword  = "sink.kafka.sasl.password"
	PropertyKafkaSaslMechanism = "sink.kafka.sasl.mechanism"
	PropertyKafkaTlsEnabled    = "sink.kafka.tls.enabled"
	PropertyKafkaTlsSkipVerify = "sink.kafka.tls.skipverify"
	PropertyKafkaTlsClientAuth = "sink.kafka.tls.clientauth"

	PropertyNatsAddress                = "sink.nats.address"
	PropertyNatsAuthorization          = "sink.nats.authorization"
	PropertyNatsUserinfoUsername       = "sink.nats.userinfo.username"
	PropertyNatsUserinfoPassword       = "sink.nats.userinfo.password"
	PropertyNatsCredentialsCertificate = "sink.nats.credentials.certificate"
	PropertyNatsCredentialsSeeds       = "sink.nats.credentials.seeds"
	PropertyNatsJwt                    = "sink.nats.jwt.jwt"
	PropertyNatsJwtSeed                = "sink.nats.jwt.seed"

	PropertyRedisNetwork           = "sink.redis.network"
	PropertyRedisAddress           = "sink.redis.address"
	PropertyRedisPassword          = "sink.redis.password"
	PropertyRedisDatabase          = "sink.redis.database"
	PropertyRedisPoolsize          = "sink.redis.poolsize"
	PropertyRedisRetriesMax        = "sink.redis.retries.maxattempts"
	PropertyRedisRetriesBackoffMin = "sink.redis.retries.backoff.min"
	PropertyRedisRetriesBackoffMax = "sink.redis.retries.backoff.max"
	PropertyRedisTimeoutDial       = "sink.redis.timeouts.dial"
	PropertyRedisTimeoutRead       = "sink.redis.timeouts.read"
	PropertyRedisTimeoutWrite      = "sink.redis.timeouts.write"
	PropertyRedisTimeoutPool       = "sink.redis.timeouts.pool"
	PropertyRedisTimeoutIdle       = "sink.redis.timeouts.idle"
	PropertyRedisTlsEnabled        = "sink.redis.tls.enabled"
	PropertyRedisTlsSkipVerify     = "sink.redis.tls.skipverify"
	PropertyRedisTlsClientAuth     = "sink.redis.tls.clientauth"

	PropertyKinesisStreamName         = "sink.kinesis.stream.name"
	PropertyKinesisStreamCreate       = "sink.kinesis.stream.create"
	PropertyKinesisStreamShardCount   = "sink.kinesis.stream.shardcount"
	PropertyKinesisStreamMode         = "sink.kinesis.stream.mode"
	PropertyKinesisRegion             = "sink.kinesis.aws.region"
	PropertyKinesisAwsEndpoint        = "sink.kinesis.aws.endpoint"
	PropertyKinesisAwsAccessKeyId     = "sink.kinesis.aws.accesskeyid"
	PropertyKinesisAwsSecretAccessKey = "sink.kinesis.aws.secretaccesskey"
	PropertyKinesisAwsSessionToken    = "sink.kinesis.aws.sessiontoken"

	PropertySqsQueueUrl           = "sink.sqs.queue.url"
	PropertySqsAwsRegion          = "sink.sqs.aws.region"
	PropertySqsAwsEndpoint        = "sink.sqs.aws.endpoint"
	PropertySqsAwsAccessKeyId     = "sink.sqs.aws.accesskeyid"
	PropertySqsAwsSecretAccessKey = "sink.sqs.aws.secretaccesskey"
	PropertySqsAwsSessionToken    = "sink.sqs.aws.sessiontoken"
)
