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

package gateway

import "strings"

// Route is the router's decision for a turn.
type Route string

const (
	RouteGeneration Route = "generation"
	RouteResearch   Route = "research"
)

// ParseRoute maps model output to a Route. Anything that is not exactly one
// of the two labels fails closed to RouteResearch so retrieval is never
// silently skipped.
func ParseRoute(s string) (Route, bool) {
	switch Route(normalizeLabel(s)) {
	case RouteGeneration:
		return RouteGeneration, true
	case RouteResearch:
		return RouteResearch, true
	default:
		return RouteResearch, false
	}
}

// Relevancy is the reviewer's decision about retrieved documents.
type Relevancy string

const (
	Relevant    Relevancy = "relevant"
	NotRelevant Relevancy = "not_relevant"
)

// ParseRelevancy maps model output to a Relevancy. Unknown labels fail
// closed to NotRelevant, which prefers the web search fallback over a
// premature answer.
func ParseRelevancy(s string) (Relevancy, bool) {
	switch Relevancy(normalizeLabel(s)) {
	case Relevant:
		return Relevant, true
	case NotRelevant:
		return NotRelevant, true
	default:
		return NotRelevant, false
	}
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, `"'.`)
}

// Outcome classifies how a gateway call ended.
type Outcome string

const (
	OutcomeOK Outcome = "ok"

	// OutcomeCallFailed covers transport errors, provider errors and
	// cancelled contexts.
	OutcomeCallFailed Outcome = "call_failed"

	// OutcomeParseFailed means the model answered but the answer did not
	// fit the expected shape.
	OutcomeParseFailed Outcome = "parse_failed"
)

// Result is the typed outcome of a gateway operation. On failure Value holds
// the operation's fail-closed default and Err the underlying cause.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeOK
}

type (
	RouteResult     = Result[Route]
	KeywordResult   = Result[string]
	RelevancyResult = Result[Relevancy]
	AnswerResult    = Result[string]
)
