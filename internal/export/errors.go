/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import "fmt"

// ExportError reports a failed export. Editor state is never affected.
type ExportError struct {
	Format Format
	Err    error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Format, e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }

// DependencyUnavailableError reports that the rendering backend is missing or
// failed its self-check.
type DependencyUnavailableError struct {
	Dependency string
	Err        error
}

func (e *DependencyUnavailableError) Error() string {
	if e.Err == nil {
		return e.Dependency + " unavailable"
	}
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyUnavailableError) Unwrap() error { return e.Err }
