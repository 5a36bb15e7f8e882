package prompt

import (
	"fmt"

	"codescribe/internal/core/domain"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// SystemInstruction is sent ahead of every chunk
const SystemInstruction = `You are a principal engineer writing production documentation for the code chunk you are given.

Write plain, well spaced text without HTML, markdown headings or asterisk emphasis.

Cover these sections in this order:
- Title
- Description
- Architecture
- Dependencies
- Components
- Methods/Functions (parameters, return values, errors raised)
- Performance (time and space complexity)
- Security
- Best Practices
- Code Example

Keep terminology precise and the formatting consistent from start to finish.`

// UserTemplate carries the chunk text and its 1-based position
const UserTemplate = "Generate documentation for chunk {{.index}}/{{.total}}:\n\n{{.code}}"

// Builder renders chat messages for a chunk
type Builder struct {
	template prompts.ChatPromptTemplate
}

// NewBuilder creates a builder with the default instruction
func NewBuilder() *Builder {
	return NewBuilderWithInstruction(SystemInstruction)
}

// NewBuilderWithInstruction creates a builder with a custom system instruction
func NewBuilderWithInstruction(instruction string) *Builder {
	return &Builder{
		template: prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
			prompts.NewSystemMessagePromptTemplate(instruction, nil),
			prompts.NewHumanMessagePromptTemplate(UserTemplate, []string{"index", "total", "code"}),
		}),
	}
}

// Build returns the system and user messages for chunk
func (b *Builder) Build(chunk domain.Chunk) ([]domain.Message, error) {
	formatted, err := b.template.FormatMessages(map[string]any{
		"index": chunk.Position(),
		"total": chunk.Total,
		"code":  chunk.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt for chunk %d: %w", chunk.Position(), err)
	}

	messages := make([]domain.Message, 0, len(formatted))
	for _, msg := range formatted {
		messages = append(messages, domain.Message{
			Role:    role(msg.GetType()),
			Content: msg.GetContent(),
		})
	}
	return messages, nil
}

func role(t llms.ChatMessageType) string {
	switch t {
	case llms.ChatMessageTypeSystem:
		return domain.RoleSystem
	case llms.ChatMessageTypeAI:
		return domain.RoleAssistant
	default:
		return domain.RoleUser
	}
}
