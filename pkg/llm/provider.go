package llm

import "strings"

const modelSeparator = "/"

// ResolveModelID maps an alias to the identifier sent on the wire. Aliases
// that already carry a provider prefix pass through unchanged.
func ResolveModelID(alias string, cfg ModelConfig) string {
	model := strings.TrimSpace(alias)
	if strings.Contains(model, modelSeparator) {
		return model
	}
	name := strings.TrimSpace(cfg.ModelName)
	if name == "" {
		name = model
	}
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" || strings.Contains(name, modelSeparator) {
		return name
	}
	return provider + modelSeparator + name
}
