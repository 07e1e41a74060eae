package inference

import (
	"fmt"
	"strings"

	"github.com/vibecollab/vibeagent/internal/domain"
)

// FormatCodeContext renders the context files as labeled text blocks.
func FormatCodeContext(files []domain.CodeContextFile) string {
	blocks := make([]string, 0, len(files))
	for _, f := range files {
		blocks = append(blocks, fmt.Sprintf(
			"--- START FILE: %s ---\n%s\n--- END FILE: %s ---",
			f.FileName, f.Content, f.FileName,
		))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildUserPrompt composes the text part of the final user turn: the context
// blocks, a base prompt adjusted for solo versus pair mode, and the user's
// own prompt.
func BuildUserPrompt(req domain.AgentRequest) string {
	var b strings.Builder

	if formatted := FormatCodeContext(req.CodeContext); formatted != "" {
		b.WriteString("Here is some relevant code context from the user's repository:\n")
		b.WriteString(formatted)
		b.WriteString("\n\n")
	}

	if req.ImageDataB != "" {
		b.WriteString("Based on the two provided screenshots (from User A and User B) and the code context, answer the following user prompt:")
	} else {
		b.WriteString("Based on the provided screenshot and the code context, answer the following user prompt:")
	}

	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%q", req.Prompt))
	return b.String()
}
