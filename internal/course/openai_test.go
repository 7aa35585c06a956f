package course

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	}
}

func fakeOpenAI(t *testing.T, responses func(call int32, prompt string) string) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(responses(n, req.Messages[len(req.Messages)-1].Content)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := fakeOpenAI(t, func(call int32, prompt string) string {
		if call == 1 {
			assert.Contains(t, prompt, "4 sections")
			return "```json\n{\"title\":\"Go\",\"sections\":[{\"title\":\"Introduction\",\"complexity\":1,\"availableTime\":5,\"bulletCount\":2},{\"title\":\"Summary\",\"complexity\":2,\"availableTime\":5,\"bulletCount\":1}]}\n```"
		}
		if strings.Contains(prompt, `"Summary"`) {
			return "not json"
		}
		return `{"title":"Introduction","content":[{"title":"A","bulletpoints":["p1","p2"]},{"title":"B","bulletpoints":["p3"]}],"test":[{"question":"Q?","answer":"A","options":["A","B","C","D"]}]}`
	})

	g := NewOpenAIGenerator("test-key", "", srv.URL+"/v1")
	c, err := g.Generate(context.Background(), Request{Topic: "Go", Level: 3, Time: 10, Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "Go", c.Topic)
	require.Len(t, c.Sections, 2)
	assert.Len(t, c.Sections[0].Content, 2)
	assert.Equal(t, 1, c.Sections[0].Content[1].ID)
	assert.Len(t, c.Sections[0].Test, 1)
	assert.Empty(t, c.Sections[0].Error)

	assert.NotEmpty(t, c.Sections[1].Error)
	assert.Empty(t, c.Sections[1].Content)
}

func TestOpenAIGenerator_PlanFailure(t *testing.T) {
	srv := fakeOpenAI(t, func(int32, string) string { return "sorry" })
	g := NewOpenAIGenerator("k", "m", srv.URL+"/v1")
	_, err := g.Generate(context.Background(), Request{Topic: "x", Level: 1, Time: 5, Language: "en"})
	assert.Error(t, err)
}

func TestSectionCount(t *testing.T) {
	assert.Equal(t, 4, SectionCount(10))
	assert.Equal(t, 3, SectionCount(30))
	assert.Equal(t, 6, SectionCount(60))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
}

func TestOpenAIGenerator_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"},{"id":"gpt-4o","object":"model"}]}`))
	}))
	t.Cleanup(srv.Close)

	g := NewOpenAIGenerator("k", "", srv.URL+"/v1")
	ids, err := g.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, ids)
	assert.Equal(t, "gpt-4o-mini", g.Model())
}

func TestOpenAIGenerator_Rewrite(t *testing.T) {
	srv := fakeOpenAI(t, func(_ int32, prompt string) string {
		assert.Contains(t, prompt, "in de for a level 4/10 learner")
		assert.Contains(t, prompt, `"Goroutines are cheap."`)
		return "```json\n[\"Goroutinen sind günstig.\"]\n```"
	})
	g := NewOpenAIGenerator("k", "m", srv.URL+"/v1")

	out, err := g.Rewrite(context.Background(), RewriteRequest{Language: "de", Level: 4, Bulletpoints: []string{"Goroutines are cheap."}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Goroutinen sind günstig."}, out)
}

func TestOpenAIGenerator_RewriteInvalidJSON(t *testing.T) {
	srv := fakeOpenAI(t, func(int32, string) string { return "{\"not\":\"a list\"}" })
	g := NewOpenAIGenerator("k", "m", srv.URL+"/v1")

	_, err := g.Rewrite(context.Background(), RewriteRequest{Language: "en", Level: 1, Bulletpoints: []string{"a"}})
	assert.Error(t, err)
}
