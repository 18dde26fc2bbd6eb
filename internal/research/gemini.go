package research

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiGateway answers research queries with the Gemini API directly,
// for deployments without a hosted research function.
type GeminiGateway struct {
	client *genai.Client
	model  string
}

// NewGeminiGateway creates a Gemini-backed research gateway.
func NewGeminiGateway(ctx context.Context, apiKey, model string) (*GeminiGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGateway{client: client, model: model}, nil
}

// Query implements Gateway.
func (g *GeminiGateway) Query(ctx context.Context, query, convContext string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("You are a research assistant for a client-protection team. ")
	prompt.WriteString("Answer concisely with current, factual information.\n\n")
	if convContext != "" {
		fmt.Fprintf(&prompt, "Conversation context:\n%s\n\n", convContext)
	}
	fmt.Fprintf(&prompt, "Research request: %s", query)

	contents := []*genai.Content{
		genai.NewContentFromText(prompt.String(), genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini research failed: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}

// Name implements Gateway.
func (g *GeminiGateway) Name() string { return "gemini:" + g.model }
