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

package statestorage

type Manager interface {
	Start() error
	Stop() error
	Get() (map[string]*Offset, error)
	Set(
		key string, value *Offset,
	) error
	Offset(
		key string,
	) (*Offset, error)
}

type stateManager struct {
	stateStorage Storage
}

func NewStateStorageManager(
	stateStorage Storage,
) Manager {

	return &stateManager{
		stateStorage: stateStorage,
	}
}

func (sm *stateManager) Start() error {
	return sm.stateStorage.Start()
}

func (sm *stateManager) Stop() error {
	return sm.stateStorage.Stop()
}

func (sm *stateManager) Get() (map[string]*Offset, error) {
	return sm.stateStorage.Get()
}

func (sm *stateManager) Set(
	key string, value *Offset,
) error {

	return sm.stateStorage.Set(key, value)
}

// Offset resolves the persisted offset of one replication slot, nil
// when the slot has never been acknowledged.
func (sm *stateManager) Offset(
	key string,
) (*Offset, error) {

	offsets, err := sm.stateStorage.Get()
	if err != nil {
		return nil, err
	}
	return offsets[key], nil
}
