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

package waiting

import (
	"fmt"
	"time"
)

var ErrWaiterTimeout = fmt.Errorf("waiter timed out")

type Waiter struct {
	done    chan bool
	timer   *time.Timer
	timeout time.Duration
}

func NewWaiter() *Waiter {
	return &Waiter{
		done: make(chan bool, 1),
	}
}

func NewWaiterWithTimeout(
	timeout time.Duration,
) *Waiter {

	return &Waiter{
		done:    make(chan bool, 1),
		timer:   time.NewTimer(timeout),
		timeout: timeout,
	}
}

func (w *Waiter) Reset() {
	if w.timer != nil {
		w.timer.Stop()
		// Make sure channel is drained
		select {
		case <-w.timer.C:
		default:
		}
		w.timer = time.NewTimer(w.timeout)
	}
}

func (w *Waiter) Signal() {
	w.done <- true
}

func (w *Waiter) Await() error {
	if w.timer == nil {
		<-w.done
		return nil
	}

	select {
	case <-w.done:
		w.timer.Stop()
		// Make sure channel is drained
		select {
		case <-w.timer.C:
		default:
		}
		return nil
	case <-w.timer.C:
		return ErrWaiterTimeout
	}
}
