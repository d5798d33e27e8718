package prompt

import (
	"strings"

	"github.com/mirror-labs/mirror/backend/internal/model/chat"
)

// HistoryLimit bounds how many stored turns the channel handler feeds
// into a prompt. Windowing happens here, not in the backend.
const HistoryLimit = 8

const persona = "You are Mirror, a friendly, empathetic mood-mirror assistant."

const guidance = "Adapt your tone and guidance to the user's mood. Support students with study strategies and stress relief;" +
	" professionals with productivity and work-life balance; offer compassionate, practical advice for sadness;" +
	" celebrate wins when happy. Keep responses concise, actionable, and caring."

// Compose renders a full generation prompt: the persona header with
// the session's fixed mood, a chronological transcript of the supplied
// turns, then the new user turn. Identical inputs always produce an
// identical prompt. An empty history skips the transcript block
// entirely rather than emitting a blank line.
func Compose(mood string, history []chat.Turn, userText string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\nDetected emotion: ")
	b.WriteString(mood)
	b.WriteString(".\n")
	b.WriteString(guidance)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Recent conversation (most recent last):\n")
		for _, turn := range history {
			b.WriteString(strings.ToUpper(string(turn.Role)))
			b.WriteString(": ")
			b.WriteString(turn.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("USER: ")
	b.WriteString(userText)
	b.WriteString("\nASSISTANT:")
	return b.String()
}
