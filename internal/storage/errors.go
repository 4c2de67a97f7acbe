/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is wrapped by StorageError when a design is too large.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// StorageError reports a failed store operation. The previously stored value
// is left intact.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CorruptDesignError reports a stored design that cannot be read back.
type CorruptDesignError struct {
	Key    string
	Reason string
	Err    error
}

func (e *CorruptDesignError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt design %q: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt design %q: %s", e.Key, e.Reason)
}

func (e *CorruptDesignError) Unwrap() error { return e.Err }
