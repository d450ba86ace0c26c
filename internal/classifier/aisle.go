// Package classifier suggests a store aisle for grocery items, using the
// OpenAI API with a keyword-based fallback.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type AisleSuggester struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[string]string
}

func NewAisleSuggester(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *AisleSuggester {
	return &AisleSuggester{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
		cache:       make(map[string]string),
	}
}

// Suggest returns a short aisle name for the item. Results are cached per
// item name; API failures fall back to keyword matching.
func (c *AisleSuggester) Suggest(ctx context.Context, itemName string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(itemName))
	if key == "" {
		return "", nil
	}

	c.mu.Lock()
	if aisle, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return aisle, nil
	}
	c.mu.Unlock()

	prompt := fmt.Sprintf(`Which grocery store aisle would you find %q in?
Answer with just the aisle name, one or two words, e.g. "Dairy", "Produce", "Frozen Foods".`, itemName)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		c.logger.Warn("Failed to get aisle suggestion", zap.Error(err), zap.String("item", itemName))
		return fallbackAisle(key), nil
	}

	aisle := strings.TrimSpace(strings.Trim(resp.Choices[0].Message.Content, `"`))
	if aisle == "" {
		aisle = fallbackAisle(key)
	}

	c.mu.Lock()
	c.cache[key] = aisle
	c.mu.Unlock()
	return aisle, nil
}

// aisleKeywords is matched in order, so more specific aisles come first.
var aisleKeywords = []struct {
	aisle string
	words []string
}{
	{"Frozen Foods", []string{"frozen", "ice cream", "pizza"}},
	{"Dairy", []string{"milk", "cheese", "yogurt", "butter", "cream", "eggs"}},
	{"Produce", []string{"apple", "banana", "lettuce", "tomato", "onion", "carrot", "potato", "fruit", "salad"}},
	{"Bakery", []string{"bread", "bagel", "roll", "croissant", "bun", "cake"}},
	{"Meat", []string{"chicken", "beef", "pork", "steak", "sausage", "bacon", "ham", "broil"}},
	{"Beverages", []string{"water", "juice", "soda", "coffee", "tea", "beer", "wine"}},
	{"Pantry", []string{"pasta", "rice", "flour", "sugar", "oil", "cereal", "beans", "sauce"}},
}

// fallbackAisle matches the item name against a small keyword table.
func fallbackAisle(name string) string {
	for _, entry := range aisleKeywords {
		for _, w := range entry.words {
			if strings.Contains(name, w) {
				return entry.aisle
			}
		}
	}
	return ""
}
