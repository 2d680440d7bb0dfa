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

// Package scout is a conversational research assistant. Each question is
// routed either straight to the language model or through a research path
// that extracts a search keyword, retrieves passages from a local knowledge
// index, checks them for relevance and falls back to a web search before
// answering.
//
// # Quick Start
//
// Build the index and start the API:
//
//	export OPENAI_API_KEY=...
//	export BRAVE_SEARCH_API_KEY=...
//	scout ingest
//	scout serve
//
// Ask a question:
//
//	curl -s localhost:8000/ask -d '{"question": "What is task decomposition?"}'
//
// Or chat in the terminal:
//
//	scout chat
//
// # Configuration
//
// Without a config file scout uses OpenAI for chat and embeddings, an
// embedded chromem index under .scout/ and Brave for web search. See
// examples/scout.yaml for every option.
//
// # Packages
//
//   - pkg/agent: the per-turn state machine
//   - pkg/gateway: typed model calls for routing, keywords, relevancy and answers
//   - pkg/rag: ingestion and retrieval over pkg/vector
//   - pkg/search: web search providers
//   - pkg/runtime: wiring from config
//   - pkg/server: the HTTP API
package scout
