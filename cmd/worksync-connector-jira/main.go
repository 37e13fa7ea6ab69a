// Command worksync-connector-jira serves the Jira connector over go-plugin.
// Credentials missing from the connection options are read from the
// environment, including a .env file in the working directory.
package main

import (
	"github.com/hashicorp/go-plugin"
	"github.com/joho/godotenv"

	"github.com/felixgeelhaar/worksync/pkg/connector/jira"
	domainPlugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

func main() {
	_ = godotenv.Load()

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: domainPlugin.Handshake,
		Plugins: map[string]plugin.Plugin{
			domainPlugin.PluginName: &domainPlugin.ConnectorPlugin{Impl: jira.New()},
		},
	})
}
