/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Graph operations addressing an unknown id.
var ErrNotFound = errors.New("scene: object not found")

// InvalidObjectError reports an object (or canvas parameter) that violates
// its variant's constraints. The graph is left unchanged.
type InvalidObjectError struct {
	Kind   string // text, shape, image or canvas
	Field  string
	Reason string
}

func (e *InvalidObjectError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s object: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s object: %s %s", e.Kind, e.Field, e.Reason)
}

func invalid(kind, field, format string, args ...any) *InvalidObjectError {
	return &InvalidObjectError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MalformedSceneError reports a serialized scene that cannot be decoded.
type MalformedSceneError struct {
	Reason string
	Err    error
}

func (e *MalformedSceneError) Error() string {
	if e.Err != nil {
		return "malformed scene: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed scene: " + e.Reason
}

func (e *MalformedSceneError) Unwrap() error { return e.Err }

func malformed(err error, format string, args ...any) *MalformedSceneError {
	return &MalformedSceneError{Reason: fmt.Sprintf(format, args...), Err: err}
}
