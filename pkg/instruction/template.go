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

// Package instruction renders instruction prompts with named placeholders.
//
//	{name}   - replaced by vars["name"]; missing is an error
//	{name?}  - optional, empty when missing
//
// Anything in braces that is not an identifier, such as a JSON example,
// is left untouched.
package instruction

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var placeholderRegex = regexp.MustCompile(`{+[^{}]*}+`)

// Template is an instruction with placeholders.
type Template struct {
	raw string
}

// New creates a template.
func New(template string) Template {
	return Template{raw: template}
}

// Raw returns the unrendered text.
func (t Template) Raw() string {
	return t.raw
}

// Placeholders lists the identifiers the template references, in order.
func (t Template) Placeholders() []string {
	var names []string
	for _, m := range placeholderRegex.FindAllString(t.raw, -1) {
		name := strings.TrimSuffix(strings.TrimSpace(strings.Trim(m, "{}")), "?")
		if isIdentifier(name) {
			names = append(names, name)
		}
	}
	return names
}

// Render substitutes vars into the template.
func (t Template) Render(vars map[string]string) (string, error) {
	return Render(t.raw, vars)
}

// Render substitutes vars into template.
func Render(template string, vars map[string]string) (string, error) {
	if template == "" {
		return "", nil
	}

	var (
		result  strings.Builder
		last    int
		missing []string
	)
	for _, idx := range placeholderRegex.FindAllStringIndex(template, -1) {
		start, end := idx[0], idx[1]
		result.WriteString(template[last:start])
		last = end

		match := template[start:end]
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")

		if !isIdentifier(name) || strings.Count(match, "{") != 1 {
			result.WriteString(match)
			continue
		}

		value, ok := vars[name]
		if !ok && !optional {
			missing = append(missing, name)
		}
		result.WriteString(value)
	}
	result.WriteString(template[last:])

	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return result.String(), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
