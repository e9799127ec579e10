package engine

import "sync"

// NavigationBuffer is a Navigator that records the latest requested address
// so transport layers can relay it to the actual router. The engine never
// talks to a router directly; it only emits intents.
type NavigationBuffer struct {
	mu   sync.Mutex
	path string
	set  bool
}

// Replace records path as the pending navigation intent, overwriting any
// unconsumed one.
func (n *NavigationBuffer) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.set = true
}

// Pop consumes the pending intent, if any.
func (n *NavigationBuffer) Pop() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.set {
		return "", false
	}
	p := n.path
	n.path, n.set = "", false
	return p, true
}
