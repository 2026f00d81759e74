package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func jsonResponse(statusCode int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: statusCode,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// candidateBody wraps text in a minimal generateContent response.
func candidateBody(t *testing.T, text string) string {
	t.Helper()
	payload := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

type capturedRequest struct {
	path   string
	apiKey string
	body   map[string]any
}

// fakeGemini answers every call with text and records what was sent.
type fakeGemini struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	text     string
}

func (f *fakeGemini) client(t *testing.T) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		f.mu.Lock()
		f.requests = append(f.requests, capturedRequest{
			path:   req.URL.Path,
			apiKey: req.Header.Get("x-goog-api-key"),
			body:   body,
		})
		status := f.status
		f.mu.Unlock()

		if status >= 300 {
			return jsonResponse(status, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`), nil
		}
		return jsonResponse(http.StatusOK, candidateBody(t, f.text)), nil
	})}
}

func (f *fakeGemini) last(t *testing.T) capturedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestGateway(t *testing.T, fake *fakeGemini, logger *zap.Logger) *geminiGateway {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	g, err := newGeminiGateway(context.Background(), gatewayConfig{
		apiKey:    "test-gemini-key",
		promptDir: t.TempDir(),
	}, fake.client(t), logger)
	require.NoError(t, err)
	return g
}

func generationConfig(t *testing.T, req capturedRequest) map[string]any {
	t.Helper()
	cfg, ok := req.body["generationConfig"].(map[string]any)
	require.True(t, ok, "request has no generationConfig: %v", req.body)
	return cfg
}

func requestPromptText(t *testing.T, req capturedRequest) string {
	t.Helper()
	contents, ok := req.body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 1)
	return parts[0].(map[string]any)["text"].(string)
}

func TestNewGeminiGatewayRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := newGeminiGateway(context.Background(), gatewayConfig{apiKey: "  "}, nil, nil)
	require.ErrorIs(t, err, errMissingAPIKey)
}

func TestDeepDiveSendsSamplingConfig(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{text: "**Invert**, always invert."}
	g := newTestGateway(t, fake, nil)

	text, err := g.DeepDive(context.Background(), "Inversion")
	require.NoError(t, err)
	require.Equal(t, "**Invert**, always invert.", text)

	req := fake.last(t)
	assert.True(t, strings.HasSuffix(req.path, "models/"+defaultFlashModel+":generateContent"), "path %q", req.path)
	assert.Equal(t, "test-gemini-key", req.apiKey)
	assert.Contains(t, requestPromptText(t, req), `"Inversion"`)

	cfg := generationConfig(t, req)
	assert.InDelta(t, 0.7, cfg["temperature"], 1e-6)
	assert.InDelta(t, 40, cfg["topK"], 1e-6)
	assert.InDelta(t, 0.95, cfg["topP"], 1e-6)
	assert.NotContains(t, cfg, "responseSchema")
}

func TestSolveSendsSchemaAndDecodesAnalysis(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{text: `{"analysis":"Look backwards.","steps":["List failure modes","Avoid them"],"conclusion":"Do less stupid things."}`}
	g := newTestGateway(t, fake, nil)

	got, err := g.Solve(context.Background(), "Inversion", "How do I keep a team happy?")
	require.NoError(t, err)
	require.Equal(t, Analysis{
		Analysis:   "Look backwards.",
		Steps:      []string{"List failure modes", "Avoid them"},
		Conclusion: "Do less stupid things.",
	}, got)

	req := fake.last(t)
	assert.True(t, strings.HasSuffix(req.path, "models/"+defaultProModel+":generateContent"), "path %q", req.path)
	prompt := requestPromptText(t, req)
	assert.Contains(t, prompt, `"Inversion"`)
	assert.Contains(t, prompt, "How do I keep a team happy?")

	cfg := generationConfig(t, req)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	schema, ok := cfg["responseSchema"].(map[string]any)
	require.True(t, ok, "missing responseSchema: %v", cfg)
	assert.ElementsMatch(t, []any{"analysis", "steps", "conclusion"}, schema["required"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 3)
	assert.Contains(t, props, "steps")
}

func TestSolveFallsBackToRawText(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	fake := &fakeGemini{text: "not json"}
	g := newTestGateway(t, fake, zap.New(core))

	got, err := g.Solve(context.Background(), "Inversion", "anything")
	require.NoError(t, err)
	require.Equal(t, Analysis{Analysis: "not json", Steps: []string{}, Conclusion: ""}, got)
	require.Equal(t, 1, logs.Len())
}

func TestWisdomSendsNoGenerationConfig(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{text: "Sit on your ass."}
	g := newTestGateway(t, fake, nil)

	text, err := g.Wisdom(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Sit on your ass.", text)

	req := fake.last(t)
	assert.True(t, strings.HasSuffix(req.path, "models/"+defaultFlashModel+":generateContent"))
	if cfg, ok := req.body["generationConfig"].(map[string]any); ok {
		assert.NotContains(t, cfg, "temperature")
		assert.NotContains(t, cfg, "responseSchema")
	}
}

func TestGatewayReturnsTransportErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{status: http.StatusBadRequest}
	g := newTestGateway(t, fake, nil)

	_, err := g.DeepDive(context.Background(), "Inversion")
	require.Error(t, err)
	require.Contains(t, err.Error(), "deep dive")

	_, err = g.Solve(context.Background(), "Inversion", "problem")
	require.Error(t, err)

	_, err = g.Wisdom(context.Background())
	require.Error(t, err)
}

func TestGatewayHonoursModelOverrides(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{text: "ok"}
	g, err := newGeminiGateway(context.Background(), gatewayConfig{
		apiKey:     "k",
		flashModel: "gemini-2.5-flash",
		proModel:   "gemini-2.5-pro",
		promptDir:  t.TempDir(),
	}, fake.client(t), zap.NewNop())
	require.NoError(t, err)

	_, err = g.DeepDive(context.Background(), "Inversion")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fake.last(t).path, "models/gemini-2.5-flash:generateContent"))
}

func TestParseAnalysis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		want   Analysis
		wantOK bool
	}{
		{
			name:   "object",
			text:   `{"analysis":"a","steps":["s"],"conclusion":"c"}`,
			want:   Analysis{Analysis: "a", Steps: []string{"s"}, Conclusion: "c"},
			wantOK: true,
		},
		{
			name:   "fenced object",
			text:   "```json\n{\"analysis\":\"a\",\"steps\":[],\"conclusion\":\"c\"}\n```",
			want:   Analysis{Analysis: "a", Steps: []string{}, Conclusion: "c"},
			wantOK: true,
		},
		{
			name:   "null steps",
			text:   `{"analysis":"a","steps":null,"conclusion":"c"}`,
			want:   Analysis{Analysis: "a", Steps: []string{}, Conclusion: "c"},
			wantOK: true,
		},
		{
			name: "plain text",
			text: "not json",
			want: Analysis{Analysis: "not json", Steps: []string{}},
		},
		{
			name: "missing field",
			text: `{"analysis":"a","steps":[]}`,
			want: Analysis{Analysis: `{"analysis":"a","steps":[]}`, Steps: []string{}},
		},
		{
			name: "wrong type",
			text: `{"analysis":"a","steps":"one","conclusion":"c"}`,
			want: Analysis{Analysis: `{"analysis":"a","steps":"one","conclusion":"c"}`, Steps: []string{}},
		},
		{
			name: "array",
			text: `["a"]`,
			want: Analysis{Analysis: `["a"]`, Steps: []string{}},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseAnalysis(tc.text)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}
