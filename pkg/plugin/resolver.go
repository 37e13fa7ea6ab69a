package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/worksync/pkg/connector/jira"
	"github.com/felixgeelhaar/worksync/pkg/connector/memory"
	"github.com/felixgeelhaar/worksync/pkg/connector/trello"
	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	domainPlugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

// Factory creates an uninitialized connector.
type Factory func() domainPlugin.Connector

// Builtins are the connectors compiled into the host.
func Builtins() map[string]Factory {
	return map[string]Factory{
		jira.Kind:   func() domainPlugin.Connector { return jira.New() },
		trello.Kind: func() domainPlugin.Connector { return trello.New() },
		memory.Kind: func() domainPlugin.Connector { return memory.New() },
	}
}

// Resolver turns connections into initialized connectors. Registered binaries
// take precedence over built-in kinds so a connector can be replaced without
// rebuilding the host.
type Resolver struct {
	registry *domainPlugin.Registry
	builtins map[string]Factory
	secrets  connection.SecretResolver
	loader   *Loader

	mu    sync.Mutex
	cache map[string]domainPlugin.Connector
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBuiltin adds or replaces a built-in connector kind.
func WithBuiltin(kind string, f Factory) ResolverOption {
	return func(r *Resolver) { r.builtins[strings.ToLower(kind)] = f }
}

// WithSecrets sets the resolver for secret connection options.
func WithSecrets(s connection.SecretResolver) ResolverOption {
	return func(r *Resolver) { r.secrets = s }
}

// NewResolver creates a resolver over registry, which may be nil.
func NewResolver(registry *domainPlugin.Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		builtins: Builtins(),
		loader:   NewLoader(),
		cache:    make(map[string]domainPlugin.Connector),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kinds lists every connector kind the resolver can serve.
func (r *Resolver) Kinds() []string {
	seen := make(map[string]bool)
	for k := range r.builtins {
		seen[k] = true
	}
	for _, k := range r.registry.Kinds() {
		seen[strings.ToLower(k)] = true
	}
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Connect returns an initialized connector for conn. Connectors are cached by
// connection name until Close.
func (r *Resolver) Connect(ctx context.Context, conn *connection.Connection) (domainPlugin.Connector, error) {
	if conn == nil {
		return nil, connection.ErrConnectionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cache[conn.Name]; ok {
		return c, nil
	}

	options, err := conn.ResolveOptions(ctx, r.secrets)
	if err != nil {
		return nil, err
	}

	c, defaults, err := r.instantiate(conn.Kind)
	if err != nil {
		return nil, err
	}
	if defaults != nil {
		options = defaults.MergeOptions(options)
	}

	if err := c.Init(options); err != nil {
		return nil, fmt.Errorf("init %s connector for %q: %w", conn.Kind, conn.Name, err)
	}
	r.cache[conn.Name] = c
	return c, nil
}

// Forget drops the cached connector of a connection, e.g. after its options
// changed.
func (r *Resolver) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

// Close releases every connector process.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.cache = make(map[string]domainPlugin.Connector)
	r.mu.Unlock()
	r.loader.Cleanup()
}

func (r *Resolver) instantiate(kind string) (domainPlugin.Connector, *domainPlugin.Registration, error) {
	if reg := r.lookup(kind); reg != nil {
		c, err := r.loader.Load(reg.Binary)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s connector: %w", kind, err)
		}
		return c, reg, nil
	}
	if f, ok := r.builtins[strings.ToLower(kind)]; ok {
		return f(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown connector kind %q (available: %s)", kind, strings.Join(r.Kinds(), ", "))
}

func (r *Resolver) lookup(kind string) *domainPlugin.Registration {
	if reg := r.registry.Get(kind); reg != nil {
		return reg
	}
	for _, k := range r.registry.Kinds() {
		if strings.EqualFold(k, kind) {
			return r.registry.Get(k)
		}
	}
	return nil
}
