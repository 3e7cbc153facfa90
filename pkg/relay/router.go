package relay

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/Ganeshg1313/askandsay-server/pkg/ai"
	"github.com/Ganeshg1313/askandsay-server/pkg/logging"
	"github.com/Ganeshg1313/askandsay-server/pkg/storage"
)

// AIFallbackMessage is delivered when the responder fails or times out.
const AIFallbackMessage = "AI failed to process your request. Try again later."

// ArtifactStore persists the generated file tree for a project.
type ArtifactStore interface {
	ReplaceFileTree(projectID string, tree json.RawMessage) (*storage.FileTreeArtifact, error)
}

// router decides what happens to each inbound room message: relay it to
// peers, and when it addresses the assistant, call the responder and
// broadcast its reply.
type router struct {
	marker    string
	markerRe  *regexp.Regexp
	responder ai.Responder
	artifacts ArtifactStore
	logger    *logging.Logger
	aiTimeout time.Duration
}

// newRouter builds a router for the given assistant marker. The marker is
// matched as a standalone word: "@ai" triggers the assistant, "@aiming"
// is ordinary peer text.
func newRouter(marker string, responder ai.Responder, artifacts ArtifactStore, logger *logging.Logger, aiTimeout time.Duration) *router {
	if marker == "" {
		marker = "@ai"
	}
	if aiTimeout <= 0 {
		aiTimeout = 60 * time.Second
	}
	return &router{
		marker:    marker,
		markerRe:  regexp.MustCompile(`(^|\s)` + regexp.QuoteMeta(marker) + `(\s|$)`),
		responder: responder,
		artifacts: artifacts,
		logger:    logger,
		aiTimeout: aiTimeout,
	}
}

// containsMarker reports whether the text addresses the assistant.
func (rt *router) containsMarker(text string) bool {
	return rt.markerRe.MatchString(text)
}

// stripMarker removes every marker occurrence, yielding the prompt.
// Adjacent markers share their separating whitespace, so one replace pass
// can leave a match behind; repeat until the text stops changing.
func (rt *router) stripMarker(text string) string {
	for {
		stripped := rt.markerRe.ReplaceAllString(text, " ")
		if stripped == text {
			return strings.TrimSpace(stripped)
		}
		text = stripped
	}
}

// handle runs on the room's dispatch goroutine. The sender identity on
// the outgoing event always comes from the authenticated session, never
// from the client payload.
func (rt *router) handle(r *room, in inbound) {
	msg := Message{
		Sender:  in.from.identity,
		Message: in.msg.Message,
	}
	event := Event{
		Type:      EventProjectMessage,
		ProjectID: r.projectID,
		Payload:   msg,
		Timestamp: time.Now().UTC(),
	}

	// A message addressing the assistant becomes a prompt; peers never
	// see the original text, only the assistant's reply.
	if rt.containsMarker(msg.Message) {
		prompt := rt.stripMarker(msg.Message)
		go rt.handleAIRequest(r, msg.Sender, prompt)
		return
	}

	r.broadcast(event, in.from)
	messagesRelayed.WithLabelValues("peer").Inc()
}

// handleAIRequest calls the responder and broadcasts its reply to the
// whole room, the requester included. Runs on its own goroutine so the
// room keeps relaying while the assistant thinks.
func (rt *router) handleAIRequest(r *room, requester Identity, prompt string) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), rt.aiTimeout)
	defer cancel()

	resp, err := rt.responder.GenerateResponse(ctx, prompt)
	aiRequestDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		aiRequests.WithLabelValues("error").Inc()
		rt.logger.Error(logging.CategoryAI, "ai_request_failed", "AI request failed", map[string]any{
			"projectId": r.projectID,
			"userId":    requester.ID,
			"error":     err.Error(),
		})
		rt.broadcastAIMessage(r, AIFallbackMessage)
		return
	}
	aiRequests.WithLabelValues("ok").Inc()

	if resp.FileTree != nil && rt.artifacts != nil {
		if _, err := rt.artifacts.ReplaceFileTree(r.projectID, resp.FileTree); err != nil {
			// The previous tree stays in place; peers still get the
			// assistant's text.
			rt.logger.Error(logging.CategoryStorage, "file_tree_replace_failed", "failed to persist generated file tree", map[string]any{
				"projectId": r.projectID,
				"error":     err.Error(),
			})
		}
	}

	text := resp.Raw
	if text == "" {
		text = resp.Text
	}
	rt.broadcastAIMessage(r, text)
}

func (rt *router) broadcastAIMessage(r *room, text string) {
	r.broadcast(Event{
		Type:      EventProjectMessage,
		ProjectID: r.projectID,
		Payload: Message{
			Sender:  AISender,
			Message: text,
		},
		Timestamp: time.Now().UTC(),
	}, nil)
	messagesRelayed.WithLabelValues("ai").Inc()
}
