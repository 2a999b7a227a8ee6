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

package stats

import (
	"time"

	"github.com/segmentio/stats/v4"
)

// Reporter is a prefixed metrics facade handed to the individual
// components. All methods are no-ops when stats are disabled.
type Reporter struct {
	statsEnabled bool
	engine       *stats.Engine
}

func (r *Reporter) Incr(
	name string, tags ...stats.Tag,
) {

	if !r.statsEnabled {
		return
	}
	r.engine.Incr(name, tags...)
}

func (r *Reporter) Add(
	name string, value any, tags ...stats.Tag,
) {

	if !r.statsEnabled {
		return
	}
	r.engine.Add(name, value, tags...)
}

func (r *Reporter) Set(
	name string, value any, tags ...stats.Tag,
) {

	if !r.statsEnabled {
		return
	}
	r.engine.Set(name, value, tags...)
}

func (r *Reporter) Observe(
	name string, value time.Duration, tags ...stats.Tag,
) {

	if !r.statsEnabled {
		return
	}
	r.engine.Observe(name, value, tags...)
}
