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

package agent

import (
	"strings"
	"unicode"
)

const (
	minKeywordTerms = 2
	maxKeywordTerms = 6
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true, "please": true, "explain": true,
	"describe": true, "give": true, "show": true, "many": true, "much": true,
	"there": true, "their": true, "these": true, "those": true, "some": true,
	"any": true, "all": true, "know": true, "want": true, "like": true,
	"am": true, "our": true, "whats": true, "let": true,
}

// qualifiers are kept even though they look like filler: they change what
// a search should return.
var qualifiers = map[string]bool{
	"latest": true, "newest": true, "current": true, "recent": true,
	"today": true, "now": true,
}

// FallbackKeyword extracts a search string without a model call. It drops
// stop-words, keeps numbers, dates and recency qualifiers, preserves the
// question's order and returns at most six terms. When fewer than two
// content terms survive, the remaining words are used as-is.
func FallbackKeyword(question string) string {
	words := splitTerms(question)

	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		lower := strings.ToLower(w)
		if seen[lower] {
			continue
		}
		if !qualifiers[lower] && !hasDigit(lower) && (stopwords[lower] || len([]rune(lower)) < 2) {
			continue
		}
		seen[lower] = true
		terms = append(terms, w)
		if len(terms) == maxKeywordTerms {
			break
		}
	}

	if len(terms) < minKeywordTerms && len(words) > len(terms) {
		// Too little survived; fall back to the leading words.
		terms = words[:min(len(words), maxKeywordTerms)]
	}
	return strings.Join(terms, " ")
}

// splitTerms splits on anything that is not a letter, digit or an
// intra-word joiner, so "2024-05-01", "GPT-4" and "U.S." survive intact.
func splitTerms(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '/' || r == '\'')
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-./'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
