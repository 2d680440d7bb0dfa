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

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/model"
)

func TestGenerate_StructuredOutput(t *testing.T) {
	var got responsesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"status": "completed",
			"output": [
				{"type": "reasoning"},
				{"type": "message", "role": "assistant", "content": [{"type": "output_text", "text": "{\"route\":\"research\"}"}]}
			],
			"usage": {"input_tokens": 12, "output_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	temp := 0.2
	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Temperature: &temp})
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), &model.Request{
		System: "route it",
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "hi"},
			{Role: model.RoleAssistant, Text: "hello"},
			{Role: model.RoleUser, Text: "latest news?"},
		},
		Schema: &model.Schema{Name: "route", Definition: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"route":"research"}`, resp.Text)
	assert.Equal(t, "completed", resp.FinishReason)
	assert.Equal(t, 17, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4.1-nano", got.Model)
	assert.Equal(t, "route it", got.Instructions)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
	require.Len(t, got.Input, 3)
	assert.Equal(t, "output_text", got.Input[1].Content[0].Type)
	require.NotNil(t, got.Text)
	assert.Equal(t, "json_schema", got.Text.Format.Type)
	assert.Equal(t, "route", got.Text.Format.Name)
	assert.True(t, got.Text.Format.Strict)
}

func TestGenerate_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "code": "invalid_api_key"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), &model.Request{Messages: []model.Message{{Role: model.RoleUser, Text: "x"}}})

	var pe *model.ProviderError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "invalid_api_key", pe.Code)
}

func TestGenerate_Refusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"completed","output":[{"type":"message","content":[{"type":"refusal","refusal":"no"}]}]}`))
	}))
	defer srv.Close()

	c, _ := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), &model.Request{})
	require.Error(t, err)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
