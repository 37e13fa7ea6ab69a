package contract

import (
	"context"
	"fmt"

	domainPlugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	infraPlugin "github.com/felixgeelhaar/worksync/pkg/plugin"
)

// ContractSuite runs all contract assertions against a connector.
type ContractSuite struct {
	loader  *infraPlugin.Loader
	options map[string]string
}

// NewContractSuite creates a suite that initializes connectors with options.
func NewContractSuite(options map[string]string) *ContractSuite {
	return &ContractSuite{
		loader:  infraPlugin.NewLoader(),
		options: options,
	}
}

// SuiteResult aggregates results from running the full contract suite.
type SuiteResult struct {
	Results []Result
	Passed  int
	Failed  int
}

// OK reports whether every assertion passed.
func (r *SuiteResult) OK() bool {
	return r.Failed == 0
}

// RunWithConnector runs the contract suite against an already-loaded
// connector. A failed Init stops the suite.
func (s *ContractSuite) RunWithConnector(ctx context.Context, c domainPlugin.Connector) *SuiteResult {
	sr := &SuiteResult{}
	record := func(result Result) {
		sr.Results = append(sr.Results, result)
		if result.Passed {
			sr.Passed++
		} else {
			sr.Failed++
		}
	}

	record(AssertInitWithBadConfig(ctx, c))
	init := AssertInitSuccess(s.options)(ctx, c)
	record(init)
	if !init.Passed {
		return sr
	}

	assertions := []Assertion{
		AssertDescribe,
		AssertCheckAuth,
		AssertFieldCatalog,
		AssertFetchHonorsLimit,
		AssertHistoryOrdered,
		AssertRejectsEmptyID,
	}
	for _, assert := range assertions {
		record(assert(ctx, c))
	}
	return sr
}

// RunBinary loads a connector binary and runs the full contract suite.
func (s *ContractSuite) RunBinary(ctx context.Context, path string) (*SuiteResult, error) {
	defer s.loader.Cleanup()

	c, err := s.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load connector: %w", err)
	}

	return s.RunWithConnector(ctx, c), nil
}
