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
	"github.com/noctarius/postgres-event-streamer/internal/functional"
	"golang.org/x/exp/constraints"
)

const (
	relationCacheBaseSize       = 0
	relationCacheSizeMultiplier = 1.5
)

// RelationCache is a sparse, slice-backed mapping from relation oids
// to their most recently observed schema. Relation oids are assigned
// from a dense range, which makes a bounds-shifted slice cheaper than
// hashing on the hot decode path.
type RelationCache[K constraints.Unsigned, V any] struct {
	cache      []*V
	empty      V
	lowerBound K
	upperBound K
}

func NewRelationCache[K constraints.Unsigned, V any]() *RelationCache[K, V] {
	return &RelationCache[K, V]{
		cache:      make([]*V, relationCacheBaseSize),
		empty:      functional.Zero[V](),
		lowerBound: 0,
		upperBound: 0,
	}
}

func (rc *RelationCache[K, V]) Get(
	oid K,
) (value V, present bool) {

	if oid < rc.lowerBound || oid > rc.upperBound {
		return rc.empty, false
	}

	if v := rc.cache[rc.location(oid, rc.lowerBound)]; v != nil {
		return *v, true
	}
	return rc.empty, false
}

func (rc *RelationCache[K, V]) Set(
	oid K, value V,
) {

	oldLowerBound := rc.lowerBound

	needsResizing := false
	if rc.lowerBound == 0 || rc.lowerBound > oid {
		rc.lowerBound = oid
		needsResizing = true
	}
	if rc.upperBound < oid {
		rc.upperBound = oid
		needsResizing = true
	}

	if needsResizing {
		newCacheSize := K(float64(rc.upperBound-rc.lowerBound+1) * relationCacheSizeMultiplier)
		newCache := make([]*V, newCacheSize)

		target := newCache
		source := rc.cache
		if oldLowerBound > rc.lowerBound {
			diff := oldLowerBound - rc.lowerBound
			target = target[diff:]
		}
		copy(target, source)

		rc.cache = newCache
	}
	rc.cache[rc.location(oid, rc.lowerBound)] = &value
}

// Clear drops all cached entries. Schemas have to be relearned from
// the stream afterwards, which happens after every reconnect since
// the server resends relation metadata for in-flight relations.
func (rc *RelationCache[K, V]) Clear() {
	rc.cache = make([]*V, relationCacheBaseSize)
	rc.lowerBound = 0
	rc.upperBound = 0
}

func (rc *RelationCache[K, V]) location(
	oid, lowerBound K,
) K {

	return oid - lowerBound
}
