package answer

import (
	"strings"

	"knowledgebot/internal/utils"
)

// DefaultSystemPrompt is used when no system prompt is configured
const DefaultSystemPrompt = "You are a friendly customer support assistant. " +
	"Answer the user's question using only the knowledge base below. " +
	"If the answer is not in the knowledge base, say you don't know and offer to connect them with a human."

// BuildPreamble assembles the instruction block sent ahead of the question
func BuildPreamble(knowledge, systemPrompt string) string {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemPrompt))
	b.WriteString("\n\nFormatting rules:\n")
	b.WriteString("- Reply in plain text. The chat client shows no markdown, so do not use *, _, #, backticks or tables.\n")
	b.WriteString("- Use short paragraphs and lines starting with \"• \" for lists.\n")
	b.WriteString("- Separate sections with a line containing only " + utils.ThematicSeparator + "\n")
	b.WriteString("- Reply in the language of the question.\n")
	b.WriteString("\nKnowledge base:\n")
	b.WriteString(knowledge)
	return b.String()
}
