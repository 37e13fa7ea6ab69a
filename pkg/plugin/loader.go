// Package plugin starts connector binaries and resolves connections to live
// connectors, either built in or served over go-plugin.
package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	goplugin "github.com/hashicorp/go-plugin"

	domainPlugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

// PluginMap is the set of plugins a connector binary may serve.
var PluginMap = map[string]goplugin.Plugin{
	domainPlugin.PluginName: &domainPlugin.ConnectorPlugin{},
}

// Loader owns the connector processes it starts.
type Loader struct {
	mu      sync.Mutex
	plugins []*goplugin.Client
}

func NewLoader() *Loader {
	return &Loader{}
}

// Load starts the binary at path and dispenses its connector. Every call
// starts a new process, so each connection keeps its own Init options.
func (l *Loader) Load(path string) (domainPlugin.Connector, error) {
	absPath, err := checkBinary(path)
	if err != nil {
		return nil, err
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: domainPlugin.Handshake,
		Plugins:         PluginMap,
		Cmd:             exec.Command(absPath), // #nosec G204 -- path comes from the connector registry
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to create plugin client: %w", err)
	}

	raw, err := rpcClient.Dispense(domainPlugin.PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense connector: %w", err)
	}

	conn, ok := raw.(domainPlugin.Connector)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not serve a connector", absPath)
	}

	l.mu.Lock()
	l.plugins = append(l.plugins, client)
	l.mu.Unlock()
	return conn, nil
}

// Running reports how many started processes are still alive.
func (l *Loader) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, client := range l.plugins {
		if !client.Exited() {
			n++
		}
	}
	return n
}

// Cleanup kills every started process.
func (l *Loader) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, client := range l.plugins {
		client.Kill()
	}
	l.plugins = nil
}

func checkBinary(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid plugin path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("plugin not found: %s", absPath)
		}
		return "", fmt.Errorf("cannot access plugin: %w", err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("plugin path is a directory: %s", absPath)
	}

	if runtime.GOOS != "windows" {
		if info.Mode()&0111 == 0 {
			return "", fmt.Errorf("plugin is not executable: %s", absPath)
		}
	}
	return absPath, nil
}
