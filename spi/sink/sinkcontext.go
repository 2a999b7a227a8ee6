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

package sink

// Context carries sink-scoped attributes across Emit calls. Transient
// attributes live for the lifetime of the process, regular attributes
// for the lifetime of the sink manager.
type Context interface {
	SetTransientAttribute(key string, value string)
	TransientAttribute(key string) (value string, present bool)
	SetAttribute(key string, value string)
	Attribute(key string) (value string, present bool)
}

type sinkContext struct {
	attributes          map[string]string
	transientAttributes map[string]string
}

func newSinkContext() *sinkContext {
	return &sinkContext{
		attributes:          make(map[string]string),
		transientAttributes: make(map[string]string),
	}
}

func (s *sinkContext) SetTransientAttribute(
	key string, value string,
) {

	s.transientAttributes[key] = value
}

func (s *sinkContext) TransientAttribute(
	key string,
) (value string, present bool) {

	value, present = s.transientAttributes[key]
	return
}

func (s *sinkContext) SetAttribute(
	key string, value string,
) {

	s.attributes[key] = value
}

func (s *sinkContext) Attribute(
	key string,
) (value string, present bool) {

	value, present = s.attributes[key]
	return
}
