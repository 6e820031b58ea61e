package config

// ModelGatewayConfig configures the provider-agnostic HTTP model gateway
// that every consensus stage streams completions through. The gateway
// itself is a host collaborator; this struct only carries the
// transport-level settings the core needs to reach it.
type ModelGatewayConfig struct {
	Provider string `yaml:"provider"` // zai, anthropic, openai, gemini, xai, openrouter
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}
