package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/worksync/pkg/cache"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

// DefaultCatalogTTL is how long a remote field catalog is reused.
const DefaultCatalogTTL = 10 * time.Minute

// FieldCatalog memoizes remote field catalogs per connection name.
type FieldCatalog struct {
	ttl time.Duration

	mu    sync.Mutex
	cache *cache.TTLCache[string, []plugin.RemoteField]
	group singleflight.Group
}

// NewFieldCatalog creates a catalog whose entries live for ttl. A
// non-positive ttl uses DefaultCatalogTTL.
func NewFieldCatalog(ttl time.Duration) *FieldCatalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &FieldCatalog{
		ttl:   ttl,
		cache: cache.New[string, []plugin.RemoteField](),
	}
}

// Fields returns the catalog of the connection called name, loading it from
// conn when missing or expired. Concurrent loads for one name share a single
// remote call, which runs detached from the cancellation of whichever caller
// started it.
func (c *FieldCatalog) Fields(ctx context.Context, name string, conn plugin.Connector) ([]plugin.RemoteField, error) {
	c.mu.Lock()
	fields, ok := c.cache.Get(name)
	c.mu.Unlock()
	if ok {
		return fields, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (interface{}, error) {
		fields, err := conn.Fields(loadCtx)
		if err != nil {
			return nil, fmt.Errorf("load field catalog of %s: %w", name, err)
		}
		c.mu.Lock()
		c.cache.Store(name, fields, c.ttl)
		c.mu.Unlock()
		return fields, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]plugin.RemoteField), nil
	}
}

// Resolve finds reference in the catalog of the connection called name.
func (c *FieldCatalog) Resolve(ctx context.Context, name string, conn plugin.Connector, reference string) (plugin.RemoteField, error) {
	fields, err := c.Fields(ctx, name, conn)
	if err != nil {
		return plugin.RemoteField{}, err
	}
	f, ok := FindField(fields, reference)
	if !ok {
		return plugin.RemoteField{}, fmt.Errorf("%w: %q on %s", ErrFieldNotFound, reference, name)
	}
	return f, nil
}

// Invalidate drops the cached catalog of the connection called name.
func (c *FieldCatalog) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(name)
}

// Cached lists the connection names with a live catalog.
func (c *FieldCatalog) Cached() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Keys()
}

// FindField matches reference against field ids, then keys, then display
// names. Comparisons ignore case and surrounding space.
func FindField(fields []plugin.RemoteField, reference string) (plugin.RemoteField, bool) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return plugin.RemoteField{}, false
	}
	for _, match := range []func(plugin.RemoteField) string{
		func(f plugin.RemoteField) string { return f.ID },
		func(f plugin.RemoteField) string { return f.Key },
		func(f plugin.RemoteField) string { return f.Name },
	} {
		for _, f := range fields {
			if v := match(f); v != "" && strings.EqualFold(v, ref) {
				return f, true
			}
		}
	}
	return plugin.RemoteField{}, false
}
