package engine

import (
	"strings"

	"inferd/pkg/types"
)

// Role labels of the prompt grammar. Generation must stop when the model
// starts emitting a non-assistant turn.
const (
	labelSystem    = "System"
	labelHuman     = "Human"
	labelAssistant = "Assistant"
)

// defaultStop halts generation at role-switch markers so the model cannot
// continue the conversation past the assistant's turn.
var defaultStop = []string{labelHuman + ":", labelSystem + ":"}

// FormatPrompt maps an ordered message list to a single prompt string.
// Pure: identical input always yields identical output. Each message becomes
// "<Label>: <content>" (unrecognized roles count as Human), lines are joined
// with a blank line, and a bare "Assistant:" cue prompts the next turn.
func FormatPrompt(messages []types.ChatMessage) string {
	parts := make([]string, 0, len(messages)+1)
	for _, msg := range messages {
		label := labelHuman
		switch msg.Role {
		case "system":
			label = labelSystem
		case "assistant":
			label = labelAssistant
		case "user":
			label = labelHuman
		}
		parts = append(parts, label+": "+msg.Content)
	}
	parts = append(parts, labelAssistant+":")
	return strings.Join(parts, "\n\n")
}
