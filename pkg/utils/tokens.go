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

// Package utils holds small helpers shared across scout packages.
package utils

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with the tiktoken encoding of a model. A
// counter without an encoding estimates four characters per token.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// Message is the minimal chat message shape the counter understands.
type Message struct {
	Role    string
	Content string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter loads the encoding for model, falling back to cl100k_base
// for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// NewTokenCounterOrEstimate never fails: when the encoding cannot be loaded
// (tiktoken downloads BPE ranks on first use) the counter estimates.
func NewTokenCounterOrEstimate(model string) *TokenCounter {
	tc, err := NewTokenCounter(model)
	if err != nil {
		slog.Warn("Token encoding unavailable, estimating token counts", "model", model, "error", err)
		return &TokenCounter{model: model}
	}
	return tc
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages follows OpenAI's accounting: 3 tokens of framing per
// message plus 3 for the reply primer.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	total := 3
	for _, msg := range messages {
		total += messageTokens(tc, msg)
	}
	return total
}

func messageTokens(tc *TokenCounter, msg Message) int {
	return 3 + tc.Count(msg.Role) + tc.Count(msg.Content)
}

// FitWithinLimit keeps the most recent messages whose total stays within
// maxTokens. Order is preserved.
func (tc *TokenCounter) FitWithinLimit(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 || maxTokens <= 0 {
		return messages
	}

	used := 3
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		n := messageTokens(tc, messages[i])
		if used+n > maxTokens {
			break
		}
		used += n
		start = i
	}
	return messages[start:]
}

// Model returns the model the counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
