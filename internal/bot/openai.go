package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/config"
	"github.com/dayuer/chatgate/internal/session"
)

// OpenAIBot calls an OpenAI-compatible chat completions endpoint using
// standard HTTP. Works with direct OpenAI, DeepSeek, Qwen, or any gateway
// speaking the same format.
type OpenAIBot struct {
	APIKey     string
	APIBase    string
	Model      string
	Prompt     string
	HTTPClient *http.Client

	store session.Store
}

// NewOpenAIBot creates an OpenAIBot from config.
func NewOpenAIBot(cfg config.BotConfig, store session.Store) *OpenAIBot {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIBot{
		APIKey:     cfg.APIKey,
		APIBase:    apiBase,
		Model:      model,
		Prompt:     cfg.Prompt,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		store:      store,
	}
}

// Reply generates a reply for query, feeding the session's history to the
// model and recording the new turn on success.
func (b *OpenAIBot) Reply(ctx context.Context, query string, c *bridge.Context) bridge.Reply {
	if c.Kind == bridge.ContextKindImageCreate {
		// Image generation is not wired to a backend; answer with an
		// explanatory INFO reply rather than failing the pipeline.
		return bridge.Reply{Kind: bridge.ReplyKindInfo, Content: "image creation is not configured"}
	}

	var sess *session.Session
	if b.store != nil {
		sess = b.store.Get(c.SessionID)
	}

	content, err := b.chat(ctx, query, sess)
	if err != nil {
		log.Printf("[OpenAI] chat error, session=%s: %v", c.SessionID, err)
		return bridge.Reply{Kind: bridge.ReplyKindError, Content: "bot backend error: " + err.Error()}
	}

	if sess != nil {
		sess.AddQuery(query)
		sess.AddReply(content)
		b.store.Save(sess)
	}
	return bridge.Reply{Kind: bridge.ReplyKindText, Content: content}
}

func (b *OpenAIBot) chat(ctx context.Context, query string, sess *session.Session) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if b.Prompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": b.Prompt})
	}
	if sess != nil {
		for _, m := range sess.Messages {
			messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
		}
	}
	messages = append(messages, map[string]string{"role": "user", "content": query})

	body, err := json.Marshal(map[string]any{
		"model":    b.Model,
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.APIBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
