// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"errors"
	"fmt"
)

// ErrIndexNotReady means the knowledge index is missing or empty. A turn
// cannot be answered with retrieval until ingestion has run.
var ErrIndexNotReady = errors.New("knowledge index not ready")

// IngestError records a source that could not be loaded, split or embedded.
type IngestError struct {
	Source string
	Op     string
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
