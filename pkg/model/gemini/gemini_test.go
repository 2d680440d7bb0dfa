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

package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kadirpekel/scout/pkg/model"
)

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"relevancy"},
		"properties": map[string]any{
			"relevancy": map[string]any{
				"type": "string",
				"enum": []any{"relevant", "not_relevant"},
			},
		},
	})

	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"relevancy"}, s.Required)
	require.Contains(t, s.Properties, "relevancy")
	assert.Equal(t, genai.TypeString, s.Properties["relevancy"].Type)
	assert.Equal(t, []string{"relevant", "not_relevant"}, s.Properties["relevancy"].Enum)
}

func TestBuildContents(t *testing.T) {
	contents := buildContents([]model.Message{
		{Role: model.RoleUser, Text: "hi"},
		{Role: model.RoleAssistant, Text: "hello"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
}

func TestParseResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: `{"route":"generation"}`},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			TotalTokenCount:      14,
		},
	}

	out, err := parseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"route":"generation"}`, out.Text)
	assert.Equal(t, "stop", out.FinishReason)
	assert.Equal(t, 14, out.Usage.TotalTokens)

	_, err = parseResponse(&genai.GenerateContentResponse{})
	require.Error(t, err)
}
