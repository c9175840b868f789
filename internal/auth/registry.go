// Package auth implements the two authentication layers: HMAC-signed request
// verification with nonce replay protection, and short-lived bearer session
// tokens issued to registered clients.
package auth

import "errors"

// Registry is the immutable client_id -> client_secret mapping loaded at
// startup.
type Registry struct {
	clients map[string]string
}

// NewRegistry copies the mapping. An empty mapping is refused; the service
// must not start without registered clients.
func NewRegistry(clients map[string]string) (*Registry, error) {
	if len(clients) == 0 {
		return nil, errors.New("auth: client registry is empty")
	}
	cp := make(map[string]string, len(clients))
	for id, secret := range clients {
		if id == "" || secret == "" {
			return nil, errors.New("auth: client registry has blank entries")
		}
		cp[id] = secret
	}
	return &Registry{clients: cp}, nil
}

// Secret returns the shared secret for a client id.
func (r *Registry) Secret(clientID string) (string, bool) {
	secret, ok := r.clients[clientID]
	return secret, ok
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.clients)
}
