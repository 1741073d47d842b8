// Package agent provides persona-bearing memory agents. Each agent owns
// one vector-store collection, retrieves relevant memories before
// generating, and stores every exchange back into its collection.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/core"
	"github.com/mnemo-ai/mnemo-go-sdk/embedding"
	"github.com/mnemo-ai/mnemo-go-sdk/vectorstore"
)

// memoryLimit is how many memories are injected into a generation prompt.
const memoryLimit = 3

// ChatCompleter is the external chat-completion boundary.
// Implementations: AnthropicCompleter (production), test fakes.
type ChatCompleter interface {
	// Complete generates text for a user message under a system prompt.
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Memory is one retrieved memory snippet with its similarity score.
type Memory struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Config configures an agent.
type Config struct {
	// Name identifies the agent. The agent's collection name is derived
	// from it. Required.
	Name string

	// SystemPrompt is the agent's fixed persona text. Required.
	SystemPrompt string
}

// CollectionName derives the deterministic collection name for an agent.
func CollectionName(agentName string) string {
	return "agent_" + strings.ToLower(agentName)
}

// Agent is a named assistant with its own memory collection.
type Agent struct {
	name         string
	systemPrompt string
	store        vectorstore.Store
	embedder     *embedding.Cache
	completer    ChatCompleter
}

// New creates an agent over its own store collection. The store must be
// scoped to CollectionName(cfg.Name); the collection is created lazily on
// first use.
func New(cfg Config, store vectorstore.Store, embedder *embedding.Cache, completer ChatCompleter) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.SystemPrompt == "" {
		return nil, fmt.Errorf("agent system prompt is required")
	}
	if store == nil || embedder == nil || completer == nil {
		return nil, fmt.Errorf("store, embedder, and completer are all required")
	}
	return &Agent{
		name:         cfg.Name,
		systemPrompt: cfg.SystemPrompt,
		store:        store,
		embedder:     embedder,
		completer:    completer,
	}, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.name
}

// Respond retrieves relevant memories, generates a reply through the chat
// provider, and stores the exchange back into the agent's collection.
func (a *Agent) Respond(ctx context.Context, userInput, conversationContext string) (string, error) {
	if userInput == "" {
		return "", core.Errorf(core.KindValidation, "agent.Respond", "user input must not be empty")
	}

	memories, err := a.SearchMemory(ctx, userInput, memoryLimit)
	if err != nil {
		return "", err
	}
	log.Printf("[AGENT] %s: retrieved %d memories", a.name, len(memories))

	message := buildUserMessage(userInput, memories, conversationContext)
	response, err := a.completer.Complete(ctx, a.systemPrompt, message)
	if err != nil {
		return "", core.E(core.KindProvider, "agent.Respond", err)
	}

	if _, err := a.storeExchange(ctx, userInput, response); err != nil {
		// The reply was already generated; losing the memory write is
		// logged, not surfaced.
		log.Printf("[AGENT] %s: failed to store exchange: %v", a.name, err)
	}

	return response, nil
}

// SearchMemory runs a similarity search over the agent's collection.
func (a *Agent) SearchMemory(ctx context.Context, query string, limit int) ([]Memory, error) {
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := a.store.Search(ctx, vec, vectorstore.SearchOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	memories := make([]Memory, 0, len(results))
	for _, r := range results {
		text, _ := r.Payload["text"].(string)
		memories = append(memories, Memory{
			ID:       r.ID,
			Text:     text,
			Score:    r.Score,
			Metadata: r.Payload,
		})
	}
	return memories, nil
}

// StoreNote embeds and stores a free-standing note in the agent's
// collection, returning the point id.
func (a *Agent) StoreNote(ctx context.Context, content string, metadata map[string]interface{}) (string, error) {
	if content == "" {
		return "", core.Errorf(core.KindValidation, "agent.StoreNote", "content must not be empty")
	}

	vec, err := a.embedder.Embed(ctx, content)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"text":       content,
		"agent":      a.name,
		"type":       "note",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range metadata {
		payload[k] = v
	}
	return a.store.Upsert(ctx, "", vec, payload)
}

// storeExchange records a (user input, response) pair as one memory.
func (a *Agent) storeExchange(ctx context.Context, userInput, response string) (string, error) {
	text := fmt.Sprintf("User: %s\nAssistant: %s", userInput, response)
	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"text":       text,
		"agent":      a.name,
		"type":       "conversation",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	return a.store.Upsert(ctx, "", vec, payload)
}

// buildUserMessage assembles the generation input: the user message, a
// block of retrieved memories, and the optional conversation context.
func buildUserMessage(userInput string, memories []Memory, conversationContext string) string {
	var b strings.Builder
	b.WriteString(userInput)

	if len(memories) > 0 {
		b.WriteString("\n\nRelevant memories:\n")
		for _, m := range memories {
			b.WriteString("- ")
			b.WriteString(m.Text)
			b.WriteString("\n")
		}
	}

	if conversationContext != "" {
		b.WriteString("\n\nConversation context: ")
		b.WriteString(conversationContext)
	}

	return b.String()
}
