package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const envSecretPrefix = "env:"

// EnvSecrets resolves secret option values of the form env:NAME from the
// process environment. Other values are used as stored.
type EnvSecrets struct {
	lookup func(string) (string, bool)
}

func NewEnvSecrets() *EnvSecrets {
	return &EnvSecrets{lookup: os.LookupEnv}
}

func (e *EnvSecrets) Resolve(_ context.Context, value string) (string, error) {
	name, ok := strings.CutPrefix(value, envSecretPrefix)
	if !ok {
		return value, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty environment variable name")
	}
	secret, found := e.lookup(name)
	if !found || secret == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return secret, nil
}
