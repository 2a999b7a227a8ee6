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

import (
	"crypto/tls"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type StateStorageType string

const (
	NoneStorage StateStorageType = "none"
	FileStorage StateStorageType = "file"
)

type SinkType string

const (
	Stdout     SinkType = "stdout"
	NATS       SinkType = "nats"
	Kafka      SinkType = "kafka"
	Redis      SinkType = "redis"
	AwsKinesis SinkType = "kinesis"
	AwsSQS     SinkType = "sqs"
)

type NamingStrategyType string

const (
	Debezium NamingStrategyType = "debezium"
)

type NatsAuthorizationType string

const (
	UserInfo    NatsAuthorizationType = "userinfo"
	Credentials NatsAuthorizationType = "credentials"
	Jwt         NatsAuthorizationType = "jwt"
)

// AcknowledgeModeType selects how consumed events advance the
// confirmed stream position: automatically as events are handed
// over, or only on an explicit acknowledge call.
type AcknowledgeModeType string

const (
	AutoAcknowledge   AcknowledgeModeType = "auto"
	ManualAcknowledge AcknowledgeModeType = "manual"
)

// DecodeFailurePolicyType selects how a per-column conversion
// failure is handled: abort the event or degrade the offending
// column to its raw textual representation.
type DecodeFailurePolicyType string

const (
	DecodeFailureAbort    DecodeFailurePolicyType = "abort"
	DecodeFailureRawValue DecodeFailurePolicyType = "rawvalue"
)

type PostgreSQLConfig struct {
	Connection      string                `toml:"connection"`
	Password        string                `toml:"password"`
	Publication     PublicationConfig     `toml:"publication"`
	ReplicationSlot ReplicationSlotConfig `toml:"replicationslot"`
	Acknowledge     AcknowledgeConfig     `toml:"acknowledge"`
	Decoding        DecodingConfig        `toml:"decoding"`
	Reconnect       ReconnectConfig       `toml:"reconnect"`
	Status          StatusConfig          `toml:"status"`
	Events          EventsConfig          `toml:"events"`
	Tables          IncludedTablesConfig  `toml:"tables"`
}

type PublicationConfig struct {
	Name     string `toml:"name"`
	Create   *bool  `toml:"create"`
	AutoDrop *bool  `toml:"autodrop"`
}

type ReplicationSlotConfig struct {
	Name     string `toml:"name"`
	Create   *bool  `toml:"create"`
	AutoDrop *bool  `toml:"autodrop"`
}

type AcknowledgeConfig struct {
	Mode AcknowledgeModeType `toml:"mode"`
}

type DecodingConfig struct {
	FailurePolicy DecodeFailurePolicyType `toml:"failurepolicy"`
}

type ReconnectConfig struct {
	MaxRetries   *uint          `toml:"maxretries"`
	InitialDelay *time.Duration `toml:"initialdelay"`
	MaxDelay     *time.Duration `toml:"maxdelay"`
}

type StatusConfig struct {
	Interval *time.Duration `toml:"interval"`
}

type EventsConfig struct {
	Insert   *bool `toml:"insert"`
	Update   *bool `toml:"update"`
	Delete   *bool `toml:"delete"`
	Truncate *bool `toml:"truncate"`
	Message  *bool `toml:"message"`
}

type IncludedTablesConfig struct {
	Excludes []string `toml:"excludes"`
	Includes []string `toml:"includes"`
}

type SinkConfig struct {
	Type       SinkType                     `toml:"type"`
	Tombstone  bool                         `toml:"tombstone"`
	Filters    map[string]EventFilterConfig `toml:"filters"`
	Nats       NatsConfig                   `toml:"nats"`
	Kafka      KafkaConfig                  `toml:"kafka"`
	Redis      RedisConfig                  `toml:"redis"`
	AwsKinesis AwsKinesisConfig             `toml:"kinesis"`
	AwsSqs     AwsSqsConfig                 `toml:"sqs"`
}

type EventFilterConfig struct {
	Tables       *IncludedTablesConfig `toml:"tables"`
	DefaultValue *bool                 `toml:"default"`
	Condition    string                `toml:"condition"`
}

type TopicConfig struct {
	NamingStrategy TopicNamingStrategyConfig `toml:"namingstrategy"`
	Prefix         string                    `toml:"prefix"`
}

type NatsUserInfoConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type NatsCredentialsConfig struct {
	Certificate string   `toml:"certificate"`
	Seeds       []string `toml:"seeds"`
}

type NatsJWTConfig struct {
	JWT  string `toml:"jwt"`
	Seed string `toml:"seed"`
}

type NatsConfig struct {
	Address       string                `toml:"address"`
	Authorization NatsAuthorizationType `toml:"authorization"`
	UserInfo      NatsUserInfoConfig    `toml:"userinfo"`
	Credentials   NatsCredentialsConfig `toml:"credentials"`
	JWT           NatsJWTConfig         `toml:"jwt"`
}

type KafkaSaslConfig struct {
	Enabled   bool                 `toml:"enabled"`
	User      string               `toml:"user"`
	Password  string               `toml:"password"`
	Mechanism sarama.SASLMechanism `toml:"mechanism"`
}

type KafkaConfig struct {
	Brokers    []string        `toml:"brokers"`
	Idempotent bool            `toml:"idempotent"`
	Sasl       KafkaSaslConfig `toml:"sasl"`
	TLS        TLSConfig       `toml:"tls"`
}

type RedisConfig struct {
	Network  string             `toml:"network"`
	Address  string             `toml:"address"`
	Password string             `toml:"password"`
	Database int                `toml:"database"`
	Retries  RedisRetryConfig   `toml:"retries"`
	Timeouts RedisTimeoutConfig `toml:"timeouts"`
	PoolSize int                `toml:"poolsize"`
	TLS      TLSConfig          `toml:"tls"`
}

type RedisRetryConfig struct {
	MaxAttempts int                     `toml:"maxattempts"`
	Backoff     RedisRetryBackoffConfig `toml:"backoff"`
}

type RedisRetryBackoffConfig struct {
	Min int `toml:"min"`
	Max int `toml:"max"`
}

type RedisTimeoutConfig struct {
	Dial  int `toml:"dial"`
	Read  int `toml:"read"`
	Write int `toml:"write"`
	Pool  int `toml:"pool"`
	Idle  int `toml:"idle"`
}

type AwsConnectionConfig struct {
	Region          *string `toml:"region"`
	Endpoint        string  `toml:"endpoint"`
	AccessKeyId     string  `toml:"accesskeyid"`
	SecretAccessKey string  `toml:"secretaccesskey"`
	SessionToken    string  `toml:"sessiontoken"`
}

type AwsKinesisConfig struct {
	Stream AwsKinesisStreamConfig `toml:"stream"`
	Aws    AwsConnectionConfig    `toml:"aws"`
}

type AwsKinesisStreamConfig struct {
	Name       *string `toml:"name"`
	Create     *bool   `toml:"create"`
	ShardCount *int64  `toml:"shardcount"`
	Mode       *string `toml:"mode"`
}

type AwsSqsConfig struct {
	Queue AwsSqsQueueConfig   `toml:"queue"`
	Aws   AwsConnectionConfig `toml:"aws"`
}

type AwsSqsQueueConfig struct {
	Url *string `toml:"url"`
}

type TopicNamingStrategyConfig struct {
	Type NamingStrategyType `toml:"type"`
}

type TLSConfig struct {
	Enabled    bool               `toml:"enabled"`
	SkipVerify bool               `toml:"skipverify"`
	ClientAuth tls.ClientAuthType `toml:"clientauth"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled"`
	Port    *uint              `toml:"port"`
	Runtime StatsRuntimeConfig `toml:"runtime"`
}

type StatsRuntimeConfig struct {
	Enabled *bool `toml:"enabled"`
}

type Config struct {
	PostgreSQL   PostgreSQLConfig   `toml:"postgresql"`
	Sink         SinkConfig         `toml:"sink"`
	Topic        TopicConfig        `toml:"topic"`
	Stats        StatsConfig        `toml:"stats"`
	StateStorage StateStorageConfig `toml:"statestorage"`
	Logging      LoggerConfig       `toml:"logging"`
	Internal     InternalConfig     `toml:"internal"`
}

type InternalConfig struct {
	EventBuffer EventBufferConfig `toml:"eventbuffer"`
	Encoding    EncodingConfig    `toml:"encoding"`
}

type EventBufferConfig struct {
	Capacity *uint `toml:"capacity"`
}

type EncodingConfig struct {
	CustomReflection bool `toml:"customreflection"`
}

type StateStorageConfig struct {
	Type        StateStorageType  `toml:"type"`
	FileStorage FileStorageConfig `toml:"file"`
}

type FileStorageConfig struct {
	Path string `toml:"path"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level"`
	Outputs LoggerOutputConfig         `toml:"output"`
	Loggers map[string]SubLoggerConfig `toml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console"`
	File    LoggerFileConfig    `toml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level"`
	Outputs LoggerOutputConfig `toml:"output"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool          `toml:"enabled"`
	Path        string         `toml:"path"`
	Rotate      *bool          `toml:"rotate"`
	MaxSize     *string        `toml:"maxsize"`
	MaxDuration *time.Duration `toml:"maxduration"`
	Compress    bool           `toml:"compress"`
}

// GetOrDefault resolves the property with the given canonical name
// against the environment (which wins) and the loaded configuration,
// falling back to the supplied default when neither carries a value.
func GetOrDefault[V any](
	config *Config, canonicalProperty string, defaultValue V,
) V {

	if env, found := findEnvProperty(canonicalProperty, defaultValue); found {
		return env
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if !element.IsZero() &&
		!(element.Kind() == reflect.Ptr && element.IsNil()) {

		if element.Kind() == reflect.Ptr {
			element = element.Elem()
		}

		return element.Convert(reflect.TypeOf(defaultValue)).Interface().(V)
	}
	return defaultValue
}

func findEnvProperty[V any](
	canonicalProperty string, defaultValue V,
) (V, bool) {

	t := reflect.TypeOf(defaultValue)

	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	envVarName = strings.ReplaceAll(envVarName, ".", "_")
	if val, ok := os.LookupEnv(envVarName); ok {
		v := reflect.ValueOf(val)
		cv := v.Convert(t)
		if !cv.IsZero() &&
			!(cv.Kind() == reflect.Ptr && cv.IsNil()) {
			return cv.Interface().(V), true
		}
	}
	return defaultValue, false
}

func findProperty(
	element reflect.Value, property string,
) (reflect.Value, bool) {

	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}
