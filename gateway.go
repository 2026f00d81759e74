package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultFlashModel = "gemini-3-flash-preview"
	defaultProModel   = "gemini-3-pro-preview"
)

// Analysis is the structured answer to a problem submitted in the lab.
type Analysis struct {
	Analysis   string   `json:"analysis"`
	Steps      []string `json:"steps"`
	Conclusion string   `json:"conclusion"`
}

// oracle generates text for the UI. Implementations return errors only for
// transport or service failures.
type oracle interface {
	DeepDive(ctx context.Context, title string) (string, error)
	Solve(ctx context.Context, title, problem string) (Analysis, error)
	Wisdom(ctx context.Context) (string, error)
}

type gatewayConfig struct {
	apiKey     string
	flashModel string
	proModel   string
	promptDir  string
}

type geminiGateway struct {
	client     *genai.Client
	flashModel string
	proModel   string
	promptDir  string
	logger     *zap.Logger
}

// newGeminiGateway builds a gateway on the Gemini API backend. httpClient may
// be nil to use the library default.
func newGeminiGateway(ctx context.Context, cfg gatewayConfig, httpClient *http.Client, logger *zap.Logger) (*geminiGateway, error) {
	if strings.TrimSpace(cfg.apiKey) == "" {
		return nil, errMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	g := &geminiGateway{
		client:     client,
		flashModel: strings.TrimSpace(cfg.flashModel),
		proModel:   strings.TrimSpace(cfg.proModel),
		promptDir:  cfg.promptDir,
		logger:     logger,
	}
	if g.flashModel == "" {
		g.flashModel = defaultFlashModel
	}
	if g.proModel == "" {
		g.proModel = defaultProModel
	}
	return g, nil
}

func deepDiveConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
		TopK:        genai.Ptr[float32](40),
		TopP:        genai.Ptr[float32](0.95),
	}
}

func solveConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"analysis":   {Type: genai.TypeString},
				"steps":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"conclusion": {Type: genai.TypeString},
			},
			Required: []string{"analysis", "steps", "conclusion"},
		},
	}
}

// DeepDive asks the flash model for a markdown explanation of one model.
func (g *geminiGateway) DeepDive(ctx context.Context, title string) (string, error) {
	prompt, err := renderPromptByName(promptDeepDive, PromptVars{Title: title}, g.promptDir)
	if err != nil {
		return "", err
	}
	text, err := g.generate(ctx, g.flashModel, prompt, deepDiveConfig())
	if err != nil {
		return "", fmt.Errorf("deep dive %q: %w", title, err)
	}
	return text, nil
}

// Solve applies the model titled title to problem and returns a structured
// analysis. Output that is not the expected JSON object becomes the analysis
// text verbatim.
func (g *geminiGateway) Solve(ctx context.Context, title, problem string) (Analysis, error) {
	prompt, err := renderPromptByName(promptSolve, PromptVars{Title: title, Problem: problem}, g.promptDir)
	if err != nil {
		return Analysis{}, err
	}
	text, err := g.generate(ctx, g.proModel, prompt, solveConfig())
	if err != nil {
		return Analysis{}, fmt.Errorf("solve with %q: %w", title, err)
	}
	result, ok := parseAnalysis(text)
	if !ok {
		g.logger.Warn("structured analysis did not decode; using raw text",
			zap.String("model", g.proModel),
			zap.Int("bytes", len(text)))
	}
	return result, nil
}

// Wisdom asks for one short quote-like line.
func (g *geminiGateway) Wisdom(ctx context.Context) (string, error) {
	prompt, err := renderPromptByName(promptWisdom, PromptVars{}, g.promptDir)
	if err != nil {
		return "", err
	}
	text, err := g.generate(ctx, g.flashModel, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("wisdom: %w", err)
	}
	return text, nil
}

func (g *geminiGateway) generate(ctx context.Context, modelName, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	g.logger.Debug("generate content",
		zap.String("model", modelName),
		zap.Int("prompt_bytes", len(prompt)))
	resp, err := g.client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("call Gemini API: %w", err)
	}
	if resp == nil {
		return "", errors.New("Gemini response was empty")
	}
	return resp.Text(), nil
}

// parseAnalysis decodes the structured solve answer. When text is not an
// object carrying all three fields it returns the raw text as the analysis
// and ok=false.
func parseAnalysis(text string) (Analysis, bool) {
	raw := Analysis{Analysis: text, Steps: []string{}, Conclusion: ""}

	body := stripCodeFence(strings.TrimSpace(text))
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return raw, false
	}
	for _, key := range []string{"analysis", "steps", "conclusion"} {
		if _, ok := fields[key]; !ok {
			return raw, false
		}
	}

	var parsed Analysis
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return raw, false
	}
	if parsed.Steps == nil {
		parsed.Steps = []string{}
	}
	return parsed, true
}

// stripCodeFence removes a surrounding ``` or ```json fence if present.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(inner[:nl])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
