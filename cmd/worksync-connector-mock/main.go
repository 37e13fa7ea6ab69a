// Command worksync-connector-mock serves the in-memory connector over
// go-plugin. It is used by contract tests and local experiments; point the
// fixture option at a YAML file to give it data.
package main

import (
	"github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/worksync/pkg/connector/memory"
	domainPlugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: domainPlugin.Handshake,
		Plugins: map[string]plugin.Plugin{
			domainPlugin.PluginName: &domainPlugin.ConnectorPlugin{Impl: memory.New()},
		},
	})
}
