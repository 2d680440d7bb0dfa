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
	"github.com/kadirpekel/scout/pkg/gateway"
	"github.com/kadirpekel/scout/pkg/model"
)

// Node names, in the order a full research turn visits them.
const (
	NodeRoute          = "route"
	NodeGenerateDirect = "generate_direct"
	NodeExtractKeyword = "extract_keyword"
	NodeRetrieve       = "retrieve"
	NodeReview         = "review"
	NodeWebSearch      = "web_search"
	NodeGenerate       = "generate"
)

// Turn outcomes reported in TurnState.Outcome and the turns metric.
const (
	OutcomeOK          = "ok"
	OutcomeDegraded    = "degraded"
	OutcomePlaceholder = "placeholder"
	OutcomeError       = "error"
)

// TurnState is the working record of one question. It is created per turn
// and discarded once the answer is returned. Documents only ever grow.
type TurnState struct {
	Question   string
	History    []model.Message
	Keyword    string
	Documents  []string
	Generation string

	Route     gateway.Route
	Relevancy gateway.Relevancy

	// Trace lists visited nodes in order.
	Trace []string

	// Failures lists every degraded external call, in order.
	Failures []Failure

	// AnswerOutcome is the outcome of the synthesis call. Anything but ok
	// means Generation holds the placeholder answer.
	AnswerOutcome gateway.Outcome

	Outcome string
}

// Failure records one external call that fell back to a default.
type Failure struct {
	Node    string `json:"node"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (s *TurnState) fail(node string, outcome string, err error) {
	f := Failure{Node: node, Outcome: outcome}
	if err != nil {
		f.Error = err.Error()
	}
	s.Failures = append(s.Failures, f)
}

// turn threads the immutable prompt snapshot through the graph next to the
// state it shapes.
type turn struct {
	prompts gateway.Prompts
	state   TurnState
}
