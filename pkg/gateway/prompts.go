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

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kadirpekel/scout/pkg/instruction"
)

// Prompts holds the instruction text for every gateway operation. It is a
// value type; callers pass it into each call and a running turn keeps the
// copy it started with.
type Prompts struct {
	Routing string
	Keyword string

	// Review must contain a {documents} placeholder.
	Review string

	// Answer must contain a {documents} placeholder.
	Answer string

	// Direct is used for synthesis without documents.
	Direct string

	// Placeholder is returned to the user when synthesis fails.
	Placeholder string
}

const defaultRoutingPrompt = `You are an expert conversation router that determines the optimal processing path for user queries.

Analyze the conversation context and the current user input and decide between:
- 'generation': requests that can be answered directly from general knowledge, creative tasks, explanations, or general assistance
- 'research': requests requiring current information, specific facts, data retrieval, or document-based answers

Route to 'research' if the query involves:
- Current events, news, or time-sensitive information
- Specific statistics, data, or factual claims that need verification
- Questions about documents, studies, or sources
- Requests for up-to-date information

Route to 'generation' if the query involves:
- General explanations or educational content
- Creative writing or brainstorming
- Analysis or opinion-based responses
- How-to guides or tutorials
- General conversation or advice

Respond with a JSON object {"route": "generation"} or {"route": "research"}.`

const defaultKeywordPrompt = `You are an expert at extracting search keywords from user queries for information retrieval.

Guidelines:
1. Focus on the core subject matter and key concepts
2. Include specific terms, names, or technical vocabulary
3. Remove filler words (the, and, or, but, how, what, when, where, why)
4. Preserve important qualifiers (recent, best, top, latest, specific dates and years)
5. Keep it concise: 2 to 6 key terms

Examples:
- "What is the latest research on climate change effects?" -> "climate change research effects latest"
- "How do I cook pasta properly?" -> "cook pasta properly technique"
- "Tell me about machine learning algorithms for beginners" -> "machine learning algorithms beginners"

Respond with a JSON object {"search_keyword": "..."}.`

const defaultReviewPrompt = `You are an expert document relevance assessor. Decide whether the provided documents contain enough information to answer the user's question.

- relevant: the documents directly answer the question, provide necessary context, or offer useful insight into it
- not_relevant: the documents lack the needed information, are off-topic, or only tangentially related

If the documents contain even partial information that contributes to an answer, lean toward "relevant".

Available Documents:
{documents}

Respond with a JSON object {"relevancy": "relevant"} or {"relevancy": "not_relevant"}.`

const defaultAnswerPrompt = `You are a helpful research assistant. Answer the user's question using the documents below and the conversation so far.

Ground every factual claim in the documents. When a document ends with a "Source:" line and you use it, cite that source. If the documents do not contain the answer, say so plainly and answer from general knowledge only where it is safe to do so.

Documents:
{documents}`

const defaultDirectPrompt = `You are a helpful assistant. Answer the user's latest message directly, taking the conversation so far into account. Be concise unless asked otherwise.`

// DefaultPlaceholder is the answer returned when synthesis fails.
const DefaultPlaceholder = "Sorry, I could not produce an answer right now. Please try again."

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() Prompts {
	return Prompts{
		Routing:     defaultRoutingPrompt,
		Keyword:     defaultKeywordPrompt,
		Review:      defaultReviewPrompt,
		Answer:      defaultAnswerPrompt,
		Direct:      defaultDirectPrompt,
		Placeholder: DefaultPlaceholder,
	}
}

// With returns a copy of p where every non-empty field of overrides
// replaces the corresponding field.
func (p Prompts) With(overrides Prompts) Prompts {
	pick := func(base, override string) string {
		if override != "" {
			return override
		}
		return base
	}
	return Prompts{
		Routing:     pick(p.Routing, overrides.Routing),
		Keyword:     pick(p.Keyword, overrides.Keyword),
		Review:      pick(p.Review, overrides.Review),
		Answer:      pick(p.Answer, overrides.Answer),
		Direct:      pick(p.Direct, overrides.Direct),
		Placeholder: pick(p.Placeholder, overrides.Placeholder),
	}
}

// Validate checks that every prompt is set and that the templated prompts
// reference only the placeholders they are rendered with.
func (p Prompts) Validate() error {
	var errs []error
	for name, text := range map[string]string{
		"routing":     p.Routing,
		"keyword":     p.Keyword,
		"review":      p.Review,
		"answer":      p.Answer,
		"direct":      p.Direct,
		"placeholder": p.Placeholder,
	} {
		if text == "" {
			errs = append(errs, fmt.Errorf("%s prompt is empty", name))
		}
	}
	errs = append(errs,
		requirePlaceholders("review", p.Review, "documents"),
		requirePlaceholders("answer", p.Answer, "documents"),
	)
	return errors.Join(errs...)
}

func requirePlaceholders(name, text string, allowed ...string) error {
	if text == "" {
		return nil
	}
	found := instruction.New(text).Placeholders()
	for _, want := range allowed {
		if !slices.Contains(found, want) {
			return fmt.Errorf("%s prompt must contain {%s}", name, want)
		}
	}
	for _, ph := range found {
		if !slices.Contains(allowed, ph) {
			return fmt.Errorf("%s prompt has unknown placeholder {%s}", name, ph)
		}
	}
	return nil
}
