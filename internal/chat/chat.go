// Package chat backs the site assistant widget with a hosted Gemini model.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultSystemPrompt is used when the config leaves the prompt empty.
const DefaultSystemPrompt = `You are Vic, the digital assistant for Victory House Chicago.
Personality: warm, helpful, slightly cheeky, loves Jesus.
Address: 4352 W. Parker Avenue, Chicago, IL 60639.
Service Times:
- Sundays 9am (Bethel)
- 10:30am (Word)
- 11am (Victory House)`

// Roles used by the widget.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMissingMessages is returned when a request has no messages array.
var ErrMissingMessages = errors.New("Missing messages")

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the widget's POST body.
type Request struct {
	Messages json.RawMessage `json:"messages"`
}

// DecodeMessages parses a chat request body. It fails with
// ErrMissingMessages unless "messages" is a JSON array, and drops entries
// whose content is missing, blank or not a string.
func DecodeMessages(body []byte) ([]Message, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, ErrMissingMessages
	}
	raw := strings.TrimSpace(string(req.Messages))
	if !strings.HasPrefix(raw, "[") {
		return nil, ErrMissingMessages
	}

	var items []map[string]any
	if err := json.Unmarshal(req.Messages, &items); err != nil {
		return nil, ErrMissingMessages
	}

	out := make([]Message, 0, len(items))
	for _, it := range items {
		content, _ := it["content"].(string)
		if strings.TrimSpace(content) == "" {
			continue
		}
		role, _ := it["role"].(string)
		if role != RoleAssistant {
			role = RoleUser
		}
		out = append(out, Message{Role: role, Content: content})
	}
	return out, nil
}

// Generator streams a model reply. emit is called for every text chunk;
// an emit error aborts the stream.
type Generator interface {
	Stream(ctx context.Context, system string, msgs []Message, emit func(chunk string) error) error
}

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. apiKey is required.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("chat: Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Stream implements Generator.
func (g *Gemini) Stream(ctx context.Context, system string, msgs []Message, emit func(string) error) error {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			return fmt.Errorf("chat: Gemini stream failed: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	return nil
}

// Name identifies the backing model in logs.
func (g *Gemini) Name() string {
	return "genai:" + g.model
}
