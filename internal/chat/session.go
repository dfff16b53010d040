package chat

import (
	"context"
	"sync"

	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// DefaultMaxHistory bounds how many prior messages are replayed to a provider.
const DefaultMaxHistory = 20

// Session is the chat panel's state: the selected node and the running
// conversation. One Session belongs to one user or connection.
type Session struct {
	mu         sync.Mutex
	node       *protocol.ContextNode
	history    []providers.Message
	maxHistory int
}

func NewSession() *Session {
	return &Session{maxHistory: DefaultMaxHistory}
}

// Select changes the current node. nil deselects.
func (s *Session) Select(node *protocol.ContextNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node == nil {
		s.node = nil
		return
	}
	n := *node
	s.node = &n
}

// Node returns the current node, or nil.
func (s *Session) Node() *protocol.ContextNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.node == nil {
		return nil
	}
	n := *s.node
	return &n
}

// History returns a copy of the conversation so far.
func (s *Session) History() []providers.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]providers.Message(nil), s.history...)
}

// Reset clears the conversation but keeps the node.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Ask sends message in the context of the session. Successful exchanges are
// appended to the history; failed ones are not replayed later.
func (s *Session) Ask(ctx context.Context, svc *Service, cred *providers.Credential, message string) (string, error) {
	req := Request{Message: message, Node: s.Node(), Credential: cred}
	if cred != nil {
		req.History = s.History()
	}

	reply, err := svc.Reply(ctx, req)
	if err != nil {
		return reply, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		providers.Message{Role: "user", Content: message},
		providers.Message{Role: "assistant", Content: reply},
	)
	if over := len(s.history) - s.maxHistory; over > 0 {
		s.history = append([]providers.Message(nil), s.history[over:]...)
	}
	return reply, nil
}
