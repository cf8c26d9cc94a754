package app

import (
	"context"
	"strings"

	"docspace/internal/ai"
)

// AskService answers a question grounded in a workspace's documents:
// it retrieves the top-ranked chunks and hands them to the LLM as
// context.
type AskService struct {
	search     *SearchService
	llmClient  *ai.OpenAICompatibleClient
	chatConfig ai.ChatConfig
}

func NewAskService(search *SearchService, llmClient *ai.OpenAICompatibleClient, chatConfig ai.ChatConfig) *AskService {
	return &AskService{
		search:     search,
		llmClient:  llmClient,
		chatConfig: chatConfig,
	}
}

type AskResult struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources"`
}

func (s *AskService) Ask(ctx context.Context, userID, workspaceID uint, question string, topK int) (*AskResult, error) {
	if topK <= 0 {
		topK = s.search.DefaultTopK()
	}
	results, err := s.search.Search(ctx, userID, workspaceID, question, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoContent
	}

	var contextBlock strings.Builder
	for _, r := range results {
		contextBlock.WriteString("\n---\n")
		contextBlock.WriteString("[" + r.Filename + "]\n")
		contextBlock.WriteString(r.Content)
	}
	contextBlock.WriteString("\n---")

	systemContent := "You are a helpful assistant. Answer the user's question based only on the following context. If the context does not contain enough information, say so. Do not make up facts."
	userContent := "Context:" + contextBlock.String() + "\n\nQuestion: " + question + "\n\nAnswer:"

	messages := []ai.ChatMessage{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}
	answer, err := s.llmClient.Complete(ctx, s.chatConfig, messages)
	if err != nil {
		return nil, err
	}

	return &AskResult{
		Answer:  strings.TrimSpace(answer),
		Sources: results,
	}, nil
}
