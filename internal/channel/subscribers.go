// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package channel

import "sync"

type subscriber[T any] struct {
	id int
	fn func(T)
}

// subscribers is a registration-ordered callback list.
type subscribers[T any] struct {
	mu   sync.RWMutex
	next int
	list []subscriber[T]
}

func (s *subscribers[T]) add(fn func(T)) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.list = append(s.list, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers[T]) snapshot() []func(T) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]func(T), len(s.list))
	for i, sub := range s.list {
		out[i] = sub.fn
	}
	return out
}
