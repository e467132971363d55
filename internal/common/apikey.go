package common

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/memoria/internal/interfaces"
)

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → KV store → config fallback → error.
// This ensures MEMORIA_* environment variables always take precedence over
// anything stored at runtime.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"MEMORIA_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"claude_api_key": {"MEMORIA_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try to resolve from KV store (medium priority - runtime-set keys)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}
