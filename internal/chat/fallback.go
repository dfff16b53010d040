// Package chat answers chat-panel messages, either through a provider or
// with the built-in canned replies when no credential is supplied.
package chat

import (
	"fmt"
	"strings"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

const (
	dnaTitle     = "Structure of DNA"
	bigBangTitle = "The Big Bang"

	guideReply    = "I am your Science Safari guide. Select a topic from the galaxy, or ask me anything about science, history, or linguistics!"
	bigBangReply  = "The Big Bang theory is the prevailing cosmological model for the universe from the earliest known periods through its subsequent large-scale evolution."
	rosalindReply = "Rosalind Franklin was a British chemist and X-ray crystallographer whose work was central to the understanding of the molecular structures of DNA. Her Photo 51 was critical evidence for the double helix structure."
	watsonReply   = "James Watson and Francis Crick are often credited with discovering the double helix structure of DNA in 1953, using data that heavily relied on Rosalind Franklin's work."
)

// FallbackReply is the deterministic answer used when no provider is configured.
func FallbackReply(message string, node *protocol.ContextNode) string {
	if node == nil {
		return guideReply
	}

	switch node.Title {
	case dnaTitle:
		lower := strings.ToLower(message)
		switch {
		case strings.Contains(lower, "rosalind"):
			return rosalindReply
		case strings.Contains(lower, "watson"):
			return watsonReply
		}
		return fmt.Sprintf("I can tell you more about the %s. It was a pivotal moment in %s. What specifically would you like to know?", node.Title, node.Era)
	case bigBangTitle:
		return bigBangReply
	}
	return fmt.Sprintf("That is a fascinating question about %s. As your AI guide, I can explain its significance in %s.", node.Title, strings.ToLower(node.Category))
}

// SystemPrompt frames a provider conversation around the selected node.
func SystemPrompt(node *protocol.ContextNode) string {
	var sb strings.Builder
	sb.WriteString("You are the Science Safari guide, a friendly tutor in an interactive knowledge galaxy. ")
	sb.WriteString("Answer clearly and concisely for a curious learner.")
	if node == nil {
		sb.WriteString(" The learner has not selected a topic yet; help with any question about science, history, or linguistics.")
		return sb.String()
	}
	fmt.Fprintf(&sb, " The learner is exploring %q", node.Title)
	if node.Category != "" {
		fmt.Fprintf(&sb, " (%s", node.Category)
		if node.Era != "" {
			fmt.Fprintf(&sb, ", %s", node.Era)
		}
		sb.WriteString(")")
	} else if node.Era != "" {
		fmt.Fprintf(&sb, " (%s)", node.Era)
	}
	sb.WriteString(".")
	if node.Summary != "" {
		sb.WriteString(" Topic summary: " + node.Summary)
	}
	sb.WriteString(" Keep answers focused on this topic unless asked otherwise.")
	return sb.String()
}
