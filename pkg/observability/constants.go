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

package observability

const (
	AttrNode        = "scout.node"
	AttrRoute       = "scout.route"
	AttrRelevancy   = "scout.relevancy"
	AttrKeyword     = "scout.keyword"
	AttrDocuments   = "scout.documents"
	AttrOutcome     = "scout.outcome"
	AttrOperation   = "scout.gateway.operation"
	AttrLLMModel    = "llm.model"
	AttrLLMProvider = "llm.provider"
	AttrTokensIn    = "llm.tokens.input"
	AttrTokensOut   = "llm.tokens.output"

	SpanTurn       = "scout.turn"
	SpanNodePrefix = "scout.node."
	SpanGateway    = "scout.gateway."
	SpanHTTP       = "http.request"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	DefaultServiceName  = "scout"
	DefaultOTLPEndpoint = "localhost:4317"

	// InstrumentationName names the tracer and meter.
	InstrumentationName = "github.com/kadirpekel/scout"
)
