package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
	defaultTimeout = 60 * time.Second
)

// systemInstruction steers the model to emit the structured JSON reply
// the frontend renders: a text message plus an optional file tree.
const systemInstruction = `You are an expert full-stack developer with 10 years of experience. You must strictly follow these response formatting rules:

1. For normal conversation (when no code is involved), return ONLY:
{"text": "Your response message here"}

2. For code-related questions, return:
{"text": "Your explanation here", "fileTree": {"fileName.ext": {"file": {"contents": "Code contents here"}}}}

CRITICAL FORMATTING RULES:
1. ALWAYS use double quotes for ALL strings, never single quotes.
2. ALWAYS escape special characters in strings: \n for newlines, \" for quotes, \\ for backslashes.
3. NEVER include comments or text outside the JSON structure.
4. ALWAYS ensure all brackets and braces are properly matched.
5. When writing code in contents, properly escape all special characters and use consistent two-space indentation.

Always validate your JSON structure before returning the response.`

// GeminiClient talks to the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// GeminiOption customizes a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithBaseURL overrides the API endpoint, primarily for tests.
func WithBaseURL(baseURL string) GeminiOption {
	return func(c *GeminiClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithModel selects the Gemini model.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewGeminiClient builds a Gemini-backed responder.
func NewGeminiClient(apiKey string, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		apiKey:  apiKey,
		baseURL: geminiBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"system_instruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateResponse sends the prompt to Gemini and parses the structured
// reply.
func (c *GeminiClient) GenerateResponse(ctx context.Context, prompt string) (*StructuredResponse, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemInstruction}},
		},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.4,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeAIError, "encode request")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeAIError, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeAITimeout, "gemini request timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeAIError, "gemini request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.New(apperrors.ErrCodeAIError,
			fmt.Sprintf("gemini request failed: %s", resp.Status)).
			WithContext("body", strings.TrimSpace(string(snippet)))
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeAIError, "decode response")
	}
	if genResp.Error != nil {
		return nil, apperrors.New(apperrors.ErrCodeAIError, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeAIError, "no candidates returned")
	}

	var textParts []string
	for _, part := range genResp.Candidates[0].Content.Parts {
		textParts = append(textParts, part.Text)
	}
	return ParseStructuredResponse(strings.Join(textParts, "\n")), nil
}

func isClientTimeout(err error) bool {
	var uerr *url.Error
	return errors.As(err, &uerr) && uerr.Timeout()
}
