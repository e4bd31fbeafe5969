package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultChatModelName  = "gemini-2.0-flash"
	defaultTitleModelName = "gemini-2.0-flash"

	// One attempt per user action, bounded; expiry counts as a
	// communication failure.
	generationTimeout = 60 * time.Second

	personaInstruction = "شما یک دستیار هوش مصنوعی شرکت شریف دیتا (Sdata) هستید. " +
		"شما باید به سوالات کاربران به زبان فارسی پاسخ دهید. " +
		"پاسخ‌های شما باید دقیق، مفید و مودبانه باشد. " +
		"شما نباید اطلاعات نادرست یا گمراه‌کننده ارائه دهید. " +
		"اگر پاسخ سوالی را نمی‌دانید، باید صادقانه بگویید که نمی‌دانید."

	titlePromptPrefix = "این پیام را فقط در سه کلمه خلاصه کن و فقط همان سه کلمه را برگردان، بدون هیچ توضیح اضافی:\n"
)

// Generator is the text-generation collaborator the orchestrator talks
// to: one reply per send, one short title per first reply.
type Generator interface {
	GenerateReply(ctx context.Context, turns []Turn) (string, error)
	GenerateTitle(ctx context.Context, replyText string) (string, error)
}

// LLMService adapts the Gemini SDK to the Generator contract.
type LLMService struct {
	client *genai.Client
	logger *zap.SugaredLogger
}

func NewLLMService(ctx context.Context, apiKey string, logger *zap.SugaredLogger) (*LLMService, error) {
	if apiKey == "" {
		return nil, ErrGenerationUnavailable
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{client: client, logger: logger}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Errorf("Error closing GenAI client: %v", err)
		}
	}
}

// GenerateReply sends the persona instruction, the history turns and the
// trailing user turn to the chat model and returns the generated text.
func (s *LLMService) GenerateReply(ctx context.Context, turns []Turn) (string, error) {
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", fmt.Errorf("%w: context window must end with a user turn", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(personaInstruction)},
	}

	session := model.StartChat()
	for _, turn := range turns[:len(turns)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(turns[len(turns)-1].Text))
	if err != nil {
		return "", fmt.Errorf("%w: gemini chat request: %v", ErrGenerationFailed, err)
	}

	text := candidateText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrGenerationFailed)
	}
	return text, nil
}

// GenerateTitle summarizes a fresh AI reply into a three-word chat title
// via a second, short generation call.
func (s *LLMService) GenerateTitle(ctx context.Context, replyText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	model := s.client.GenerativeModel(defaultTitleModelName)

	temp := float32(0.3)
	maxTokens := int32(20)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(titlePromptPrefix+replyText))
	if err != nil {
		return "", fmt.Errorf("%w: gemini title request: %v", ErrGenerationFailed, err)
	}

	title := candidateText(resp)
	if title == "" {
		return "", fmt.Errorf("%w: empty title candidate", ErrGenerationFailed)
	}
	return strings.Trim(title, "\"'\n\r\t ."), nil
}

// candidateText concatenates the text parts of the first candidate, or
// returns "" when the response has no usable content.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String()
}
