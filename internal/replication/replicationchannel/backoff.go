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

package replicationchannel

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
)

const (
	defaultReconnectInitialDelay = time.Millisecond * 100
	defaultReconnectMaxDelay     = time.Second * 30
	defaultReconnectMaxRetries   = uint(0)
)

// reconnectPolicy decides how long to wait before the next reconnect
// attempt. Delays grow exponentially with jitter up to the configured
// cap. A maxRetries of 0 retries forever.
type reconnectPolicy struct {
	backoff    *backoff.ExponentialBackOff
	maxRetries uint
	retries    uint
}

func newReconnectPolicy(
	config *spiconfig.Config,
) *reconnectPolicy {

	initialDelay := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlReconnectInitialDelay, defaultReconnectInitialDelay,
	)
	maxDelay := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlReconnectMaxDelay, defaultReconnectMaxDelay,
	)
	maxRetries := spiconfig.GetOrDefault(
		config, spiconfig.PropertyPostgresqlReconnectMaxRetries, defaultReconnectMaxRetries,
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	return &reconnectPolicy{
		backoff:    b,
		maxRetries: maxRetries,
	}
}

// next returns the delay before the upcoming reconnect attempt, or an
// error once the configured number of attempts is exhausted.
func (rp *reconnectPolicy) next() (time.Duration, error) {
	rp.retries++
	if rp.maxRetries > 0 && rp.retries > rp.maxRetries {
		return 0, errors.Errorf(
			"maximum number of reconnect attempts reached (%d)", rp.maxRetries,
		)
	}
	return rp.backoff.NextBackOff(), nil
}

// reset is called after a replication session came up successfully, so
// a later disconnect starts over with the initial delay.
func (rp *reconnectPolicy) reset() {
	rp.retries = 0
	rp.backoff.Reset()
}
