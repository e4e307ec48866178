package ws

import "sync"

// Registry tracks live clients so the server can close them on shutdown.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CloseAll closes every tracked client. Their Serve loops run the usual
// disconnect cleanup and remove them.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
