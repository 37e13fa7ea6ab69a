// Package contract provides contract test assertions for worksync connectors.
package contract

import (
	"context"
	"fmt"

	domainPlugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

// Result captures the outcome of a single contract assertion.
type Result struct {
	Name    string
	Passed  bool
	Message string
}

// Assertion checks one part of the connector contract.
type Assertion func(ctx context.Context, c domainPlugin.Connector) Result

func pass(name, format string, args ...any) Result {
	return Result{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

// AssertInitWithBadConfig verifies that Init returns an error for fail=true.
func AssertInitWithBadConfig(_ context.Context, c domainPlugin.Connector) Result {
	err := c.Init(map[string]string{"fail": "true"})
	if err == nil {
		return fail("InitWithBadConfig", "expected Init to fail with fail=true config")
	}
	return pass("InitWithBadConfig", "Init correctly failed: %v", err)
}

// AssertInitSuccess returns an assertion that Init accepts options.
func AssertInitSuccess(options map[string]string) Assertion {
	return func(_ context.Context, c domainPlugin.Connector) Result {
		if err := c.Init(options); err != nil {
			return fail("InitSuccess", "Init failed: %v", err)
		}
		return pass("InitSuccess", "Init succeeded")
	}
}

// AssertDescribe verifies the connector names itself.
func AssertDescribe(_ context.Context, c domainPlugin.Connector) Result {
	if c.Kind() == "" {
		return fail("Describe", "Kind returned an empty string")
	}
	return pass("Describe", "kind %q, item view path %q", c.Kind(), c.ItemViewPath())
}

// AssertCheckAuth verifies the configured credentials are accepted.
func AssertCheckAuth(ctx context.Context, c domainPlugin.Connector) Result {
	if err := c.CheckAuth(ctx); err != nil {
		return fail("CheckAuth", "CheckAuth failed: %v", err)
	}
	return pass("CheckAuth", "credentials accepted")
}

// AssertFieldCatalog verifies field ids are present and unique.
func AssertFieldCatalog(ctx context.Context, c domainPlugin.Connector) Result {
	fields, err := c.Fields(ctx)
	if err != nil {
		return fail("FieldCatalog", "Fields failed: %v", err)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			return fail("FieldCatalog", "field %q has no id", f.Name)
		}
		if seen[f.ID] {
			return fail("FieldCatalog", "duplicate field id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return pass("FieldCatalog", "%d fields", len(fields))
}

// AssertFetchHonorsLimit verifies FetchItems stops at the query limit and
// returns items with ids.
func AssertFetchHonorsLimit(ctx context.Context, c domainPlugin.Connector) Result {
	const limit = 5
	items, err := c.FetchItems(ctx, domainPlugin.Query{Limit: limit})
	if err != nil {
		return fail("FetchHonorsLimit", "FetchItems failed: %v", err)
	}
	if len(items) > limit {
		return fail("FetchHonorsLimit", "returned %d items for limit %d", len(items), limit)
	}
	for _, item := range items {
		if item.ID == "" {
			return fail("FetchHonorsLimit", "item %q has no id", item.Name)
		}
	}
	return pass("FetchHonorsLimit", "returned %d items", len(items))
}

// AssertHistoryOrdered verifies the history of the first item is oldest
// first.
func AssertHistoryOrdered(ctx context.Context, c domainPlugin.Connector) Result {
	items, err := c.FetchItems(ctx, domainPlugin.Query{Limit: 1})
	if err != nil {
		return fail("HistoryOrdered", "FetchItems failed: %v", err)
	}
	if len(items) == 0 {
		return pass("HistoryOrdered", "no items to check")
	}

	history, err := c.FetchHistory(ctx, items[0].ID)
	if err != nil {
		return fail("HistoryOrdered", "FetchHistory(%s) failed: %v", items[0].ID, err)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			return fail("HistoryOrdered", "entry %d of %s is older than its predecessor", i, items[0].ID)
		}
	}
	return pass("HistoryOrdered", "%d entries in order", len(history))
}

// AssertRejectsEmptyID verifies ValidateItemID rejects an empty id.
func AssertRejectsEmptyID(_ context.Context, c domainPlugin.Connector) Result {
	err := c.ValidateItemID("")
	if err == nil {
		return fail("RejectsEmptyID", "ValidateItemID accepted an empty id")
	}
	return pass("RejectsEmptyID", "empty id rejected: %v", err)
}
