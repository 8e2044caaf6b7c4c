// Package generator produces sandbox articles with an eino chat model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"sona/internal/logging"
	"sona/internal/models"
	"sona/internal/textutil"
)

// Generator implements services.ContentGenerator over a chat model.
type Generator struct {
	model  model.BaseChatModel
	system string
	prompt string
	log    *logging.Logger
}

// New wraps an existing chat model.
func New(m model.BaseChatModel, log *logging.Logger) (*Generator, error) {
	if m == nil {
		return nil, errors.New("generator: chat model is required")
	}
	if log == nil {
		log = logging.NewNop()
	}
	system, err := embeddedPrompts.ReadFile("prompts/system.txt")
	if err != nil {
		return nil, fmt.Errorf("generator: load system prompt: %w", err)
	}
	prompt, err := embeddedPrompts.ReadFile("prompts/article.txt")
	if err != nil {
		return nil, fmt.Errorf("generator: load article prompt: %w", err)
	}
	return &Generator{
		model:  m,
		system: strings.TrimSpace(string(system)),
		prompt: string(prompt),
		log:    log.With("component", "generator"),
	}, nil
}

// NewOpenAI builds a Generator backed by an OpenAI-compatible endpoint.
// An empty baseURL uses the public API.
func NewOpenAI(ctx context.Context, apiKey, modelName, baseURL string, log *logging.Logger) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("generator: OpenAI API key is required")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   modelName,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: create chat model: %w", err)
	}
	return New(cm, log)
}

func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest, settings models.SONASettings) (*models.GeneratedContent, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, errors.New("generator: topic is required")
	}
	messages := []*schema.Message{
		schema.SystemMessage(g.system),
		schema.UserMessage(g.render(req, settings)),
	}
	reply, err := g.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generator: chat completion: %w", err)
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return nil, errors.New("generator: empty completion")
	}

	out := Score(reply.Content, req, settings)
	g.log.Debug("article generated", "topic", req.Topic, "words", out.WordCount, "quality", out.QualityScore)
	return out, nil
}

func (g *Generator) render(req models.GenerationRequest, s models.SONASettings) string {
	target := s.WordCountTargets.For(s.ArticleLength)
	keywords := strings.Join(req.Keywords, ", ")
	if keywords == "" {
		keywords = "none"
	}
	template := ""
	if req.Template != "" {
		template = "Follow this structure:\n" + req.Template
	}
	category := req.Category
	if category == "" {
		category = "general"
	}
	r := strings.NewReplacer(
		"{{topic}}", req.Topic,
		"{{category}}", category,
		"{{minWords}}", strconv.Itoa(target.Min),
		"{{maxWords}}", strconv.Itoa(target.Max),
		"{{keywords}}", keywords,
		"{{minKeywords}}", strconv.Itoa(s.MinKeywordOccurrences),
		"{{maxKeywords}}", strconv.Itoa(s.MaxKeywordOccurrences),
		"{{density}}", strconv.FormatFloat(s.KeywordDensity, 'f', -1, 64),
		"{{diversity}}", s.DiversityLevel,
		"{{template}}", template,
	)
	return strings.TrimSpace(r.Replace(g.prompt))
}

// Score splits a completion into title and body and rates it against the
// settings. The score is out of 100: 40 for word count in range, 30 for
// keyword usage, 20 for paragraph structure, 10 for a title.
func Score(text string, req models.GenerationRequest, s models.SONASettings) *models.GeneratedContent {
	title, body := splitTitle(text)
	out := &models.GeneratedContent{
		Title:     title,
		Content:   body,
		WordCount: textutil.WordCount(body),
	}
	if req.Template != "" {
		out.Templates = []string{req.Template}
	}
	out.KeywordCount = countKeywords(body, req.Keywords)

	var score float64
	target := s.WordCountTargets.For(s.ArticleLength)
	switch {
	case out.WordCount >= target.Min && out.WordCount <= target.Max:
		score += 40
	case out.WordCount > 0 && target.Min > 0:
		ratio := float64(out.WordCount) / float64(target.Min)
		if out.WordCount > target.Max {
			ratio = float64(target.Max) / float64(out.WordCount)
		}
		score += 40 * math.Max(0, math.Min(1, ratio))
	}

	if len(req.Keywords) == 0 {
		score += 30
	} else if out.KeywordCount >= s.MinKeywordOccurrences && out.KeywordCount <= s.MaxKeywordOccurrences {
		score += 30
	} else if out.KeywordCount > 0 {
		score += 15
	}

	paragraphs := 0
	for _, p := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	score += 20 * math.Min(1, float64(paragraphs)/3)

	if title != "" {
		score += 10
	}
	out.QualityScore = math.Round(score*10) / 10
	return out
}

func splitTitle(text string) (string, string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if strings.HasPrefix(first, "#") {
		return strings.TrimSpace(strings.TrimLeft(first, "#")), strings.TrimSpace(rest)
	}
	return "", text
}

func countKeywords(body string, keywords []string) int {
	norm := " " + textutil.Normalize(body) + " "
	total := 0
	for _, kw := range keywords {
		k := textutil.Normalize(kw)
		if k == "" {
			continue
		}
		total += strings.Count(norm, " "+k+" ")
	}
	return total
}
