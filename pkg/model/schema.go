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

package model

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects T into a self-contained JSON schema map. Struct tags
// drive the result: `json` for names, `jsonschema` for enums and
// descriptions.
func SchemaFor[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustSchema is SchemaFor for package-level schemas built from static types.
func MustSchema[T any](name string) *Schema {
	def, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return &Schema{Name: name, Definition: def}
}
