package ai

import (
	"context"
	"encoding/json"
	"strings"
)

// Responder generates a structured assistant reply for a prompt.
type Responder interface {
	GenerateResponse(ctx context.Context, prompt string) (*StructuredResponse, error)
}

// StructuredResponse is the assistant's reply. Text is always present;
// FileTree is set when the reply includes generated project files, keyed
// by file name with {"file":{"contents":"..."}} values.
type StructuredResponse struct {
	Text     string          `json:"text"`
	FileTree json.RawMessage `json:"fileTree,omitempty"`
	Raw      string          `json:"-"`
}

// ParseStructuredResponse decodes the model's raw output. Unknown fields
// such as dependency or command hints are ignored. When the output is not
// the expected JSON shape, the raw text becomes the reply text so a
// malformed model response still reaches the room.
func ParseStructuredResponse(raw string) *StructuredResponse {
	trimmed := strings.TrimSpace(raw)
	trimmed = stripCodeFence(trimmed)

	var parsed struct {
		Text     string          `json:"text"`
		FileTree json.RawMessage `json:"fileTree"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil || parsed.Text == "" {
		return &StructuredResponse{Text: raw, Raw: raw}
	}

	resp := &StructuredResponse{Text: parsed.Text, Raw: trimmed}
	if len(parsed.FileTree) > 0 && string(parsed.FileTree) != "null" {
		resp.FileTree = parsed.FileTree
	}
	return resp
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit despite being asked for bare JSON.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
