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

package eventfiltering

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/noctarius/postgres-event-streamer/internal/replication/tablefiltering"
	"github.com/noctarius/postgres-event-streamer/spi/config"
	"github.com/noctarius/postgres-event-streamer/spi/schema"
	"github.com/noctarius/postgres-event-streamer/spi/stream"
)

// EventFilter gates sink dispatch. Evaluate returns true when the
// event should be emitted.
type EventFilter interface {
	Evaluate(
		event *stream.ChangeEvent,
	) (bool, error)
}

type eventFilterFunc func(event *stream.ChangeEvent) (bool, error)

func (eff eventFilterFunc) Evaluate(
	event *stream.ChangeEvent,
) (bool, error) {

	return eff(event)
}

// NewEventFilter compiles the configured filter expressions. Each
// filter can be scoped to a set of tables; an event passes when every
// filter whose table scope covers it evaluates to true.
func NewEventFilter(
	filterDefinitions map[string]config.EventFilterConfig,
) (EventFilter, error) {

	if len(filterDefinitions) == 0 {
		return acceptAllFilter, nil
	}

	filters := make([]*eventFilter, 0)
	tableFilters := make([]tableFilter, 0)
	for _, def := range filterDefinitions {
		defaultValue := true
		if def.DefaultValue != nil {
			defaultValue = *def.DefaultValue
		}

		if def.Tables != nil {
			tf, err := tablefiltering.NewTableFilter(def.Tables.Excludes, def.Tables.Includes, true)
			if err != nil {
				return nil, err
			}
			tableFilters = append(tableFilters, tf)
		} else {
			tableFilters = append(tableFilters, acceptAllTableFilter)
		}

		prog, err := expr.Compile(def.Condition)
		if err != nil {
			return nil, err
		}

		filters = append(filters, &eventFilter{
			defaultValue: defaultValue,
			condition:    def.Condition,
			prog:         prog,
			vm:           &vm.VM{},
		})
	}
	return compositeFilter(filters, tableFilters), nil
}

var acceptAllFilter eventFilterFunc = func(_ *stream.ChangeEvent) (bool, error) {
	return true, nil
}

var compositeFilter = func(filters []*eventFilter, tableFilters []tableFilter) EventFilter {
	return eventFilterFunc(func(event *stream.ChangeEvent) (bool, error) {
		for i, tableFilter := range tableFilters {
			if event.Table == "" || tableFilter.Enabled(event.Namespace, event.Table) {
				success, err := filters[i].evaluate(event)
				if err != nil {
					return false, err
				}
				if !success {
					return false, nil
				}
			}
		}
		return true, nil
	})
}

type eventFilter struct {
	defaultValue bool
	condition    string
	prog         *vm.Program
	vm           *vm.VM
}

func (f *eventFilter) evaluate(
	event *stream.ChangeEvent,
) (bool, error) {

	env := map[string]any{
		"op":     string(event.Operation),
		"schema": event.Namespace,
		"table":  event.Table,
		"key":    event.Key,
		"value":  event.Envelope,
	}
	if event.Envelope != nil {
		if before, present := event.Envelope[schema.FieldNameBefore]; present {
			env["before"] = before
		}
		if after, present := event.Envelope[schema.FieldNameAfter]; present {
			env["after"] = after
		}
	}

	result, err := f.vm.Run(f.prog, env)
	if err != nil {
		return false, err
	}

	r, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("result of filter «%s» isn't a boolean", f.condition)
	}

	if r {
		return f.defaultValue, nil
	}
	return !f.defaultValue, nil
}

type tableFilter interface {
	Enabled(schemaName, tableName string) bool
}

type tableFilterFunc func(schemaName, tableName string) bool

func (tff tableFilterFunc) Enabled(
	schemaName, tableName string,
) bool {

	return tff(schemaName, tableName)
}

var acceptAllTableFilter tableFilterFunc = func(_, _ string) bool {
	return true
}
