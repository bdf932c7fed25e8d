// Package provider defines the email backends the email sender can use and
// a registry that picks a configured one, with fallback on failure.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrNoProvider is returned when no registered provider is configured.
var ErrNoProvider = errors.New("no configured email provider available")

// EmailRequest is a single outbound message.
type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Provider is an email backend such as Resend or SES.
type Provider interface {
	Name() string
	Send(ctx context.Context, req *EmailRequest) error
	IsConfigured() bool
}

// Registry holds providers with a primary and an ordered fallback list.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallback  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, replacing any with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// SetPrimary selects the provider tried first.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.primary = name
	return nil
}

// SetFallback sets the providers tried, in order, when the primary is
// unavailable or fails.
func (r *Registry) SetFallback(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
	}
	r.fallback = names
	return nil
}

// Available reports whether at least one provider is configured.
func (r *Registry) Available() bool {
	_, err := r.pick()
	return err == nil
}

// pick returns the primary if configured, otherwise the first configured
// fallback.
func (r *Registry) pick() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[r.primary]; ok && p.IsConfigured() {
		return p, nil
	}
	for _, name := range r.fallback {
		if p, ok := r.providers[name]; ok && p.IsConfigured() {
			slog.Warn("Primary email provider not configured, using fallback",
				"primary", r.primary,
				"fallback", name,
			)
			return p, nil
		}
	}
	return nil, ErrNoProvider
}

// Send delivers req through the best available provider. When it fails,
// each remaining configured fallback is tried; the first error is returned
// if none succeeds.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	p, err := r.pick()
	if err != nil {
		return err
	}

	sendErr := p.Send(ctx, req)
	if sendErr == nil {
		return nil
	}

	r.mu.RLock()
	fallbacks := append([]string(nil), r.fallback...)
	r.mu.RUnlock()

	for _, name := range fallbacks {
		fb, ok := r.get(name)
		if !ok || !fb.IsConfigured() || fb.Name() == p.Name() {
			continue
		}
		slog.Warn("Email provider failed, trying fallback",
			"provider", p.Name(),
			"fallback", name,
			"error", sendErr,
		)
		if err := fb.Send(ctx, req); err == nil {
			return nil
		}
	}
	return sendErr
}

func (r *Registry) get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
