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

package dummy

import (
	"sync"

	spiconfig "github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/statestorage"
)

func init() {
	statestorage.RegisterStateStorage(
		spiconfig.NoneStorage, func(_ *spiconfig.Config) (statestorage.Storage, error) {
			return NewDummyStateStorage(), nil
		},
	)
}

// DummyStateStorage keeps offsets in memory only. Restarting the
// process resumes from the confirmed flush position of the
// replication slot instead of a persisted offset.
type DummyStateStorage struct {
	mutex   sync.Mutex
	offsets map[string]*statestorage.Offset
}

func NewDummyStateStorage() *DummyStateStorage {
	return &DummyStateStorage{
		offsets: make(map[string]*statestorage.Offset),
	}
}

func (d *DummyStateStorage) Start() error {
	return nil
}

func (d *DummyStateStorage) Stop() error {
	return nil
}

func (d *DummyStateStorage) Save() error {
	return nil
}

func (d *DummyStateStorage) Load() error {
	return nil
}

func (d *DummyStateStorage) Get() (map[string]*statestorage.Offset, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.offsets, nil
}

func (d *DummyStateStorage) Set(
	key string, value *statestorage.Offset,
) error {

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.offsets[key] = value
	return nil
}
