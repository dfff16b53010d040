package chat

import (
	"strings"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

var catalog = []protocol.ContextNode{
	{
		ID:       "big-bang",
		Title:    "The Big Bang",
		Category: "Science",
		Era:      "Beginning of Time",
		Year:     -13_800_000_000,
		Summary:  "The rapid expansion of matter from a state of extremely high density and temperature that marked the origin of the universe.",
	},
	{
		ID:       "printing-press",
		Title:    "The Printing Press",
		Category: "History",
		Era:      "Renaissance",
		Year:     1440,
		Summary:  "Gutenberg's invention that democratized knowledge and fueled the Renaissance.",
	},
	{
		ID:       "dna-structure",
		Title:    "Structure of DNA",
		Category: "Science",
		Era:      "Modern Era",
		Year:     1953,
		Summary:  "Watson, Crick, and Franklin's discovery of the double helix structure of life.",
	},
	{
		ID:       "rosetta-stone",
		Title:    "The Rosetta Stone",
		Category: "Linguistics",
		Era:      "Ancient History",
		Year:     -196,
		Summary:  "The key to deciphering Egyptian hieroglyphs, bridging ancient languages.",
	},
	{
		ID:       "internet",
		Title:    "The Internet",
		Category: "Science",
		Era:      "Information Age",
		Year:     1983,
		Summary:  "A global system of interconnected computer networks that revolutionized communication.",
	},
}

// Catalog returns a copy of the built-in topic nodes.
func Catalog() []protocol.ContextNode {
	out := make([]protocol.ContextNode, len(catalog))
	copy(out, catalog)
	return out
}

// FindNode looks a node up by ID or title, case-insensitively.
func FindNode(ref string) (*protocol.ContextNode, bool) {
	ref = strings.TrimSpace(ref)
	for i := range catalog {
		if strings.EqualFold(catalog[i].ID, ref) || strings.EqualFold(catalog[i].Title, ref) {
			n := catalog[i]
			return &n, true
		}
	}
	return nil, false
}
