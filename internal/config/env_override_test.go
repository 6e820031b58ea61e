package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_ModelGateway(t *testing.T) {
	t.Run("ZAI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("ZAI_API_KEY", "zai-key")
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "zai-key", cfg.ModelGateway.APIKey)
		assert.Equal(t, "zai", cfg.ModelGateway.Provider)
	})

	t.Run("ZAI_API_KEY does not override existing provider", func(t *testing.T) {
		t.Setenv("ZAI_API_KEY", "zai-key")

		cfg := &Config{
			ModelGateway: ModelGatewayConfig{Provider: "custom"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "zai-key", cfg.ModelGateway.APIKey)
		assert.Equal(t, "custom", cfg.ModelGateway.Provider)
	})

	t.Run("ANTHROPIC_API_KEY overrides provider", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg := &Config{
			ModelGateway: ModelGatewayConfig{Provider: "initial"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "ant-key", cfg.ModelGateway.APIKey)
		assert.Equal(t, "anthropic", cfg.ModelGateway.Provider)
	})

	t.Run("Precedence: OPENAI overrides ANTHROPIC", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.ModelGateway.APIKey)
		assert.Equal(t, "openai", cfg.ModelGateway.Provider)
	})

	t.Run("Precedence: Full Chain", func(t *testing.T) {
		t.Run("All Set -> OpenRouter", func(t *testing.T) {
			setAllGatewayKeys(t)
			cfg := &Config{}
			cfg.applyEnvOverrides()
			assert.Equal(t, "or", cfg.ModelGateway.APIKey)
			assert.Equal(t, "openrouter", cfg.ModelGateway.Provider)
		})

		t.Run("No OpenRouter -> XAI", func(t *testing.T) {
			setAllGatewayKeys(t)
			t.Setenv("OPENROUTER_API_KEY", "")
			cfg := &Config{}
			cfg.applyEnvOverrides()
			assert.Equal(t, "xai", cfg.ModelGateway.APIKey)
			assert.Equal(t, "xai", cfg.ModelGateway.Provider)
		})

		t.Run("No XAI -> Gemini", func(t *testing.T) {
			setAllGatewayKeys(t)
			t.Setenv("OPENROUTER_API_KEY", "")
			t.Setenv("XAI_API_KEY", "")
			cfg := &Config{}
			cfg.applyEnvOverrides()
			assert.Equal(t, "gem", cfg.ModelGateway.APIKey)
			assert.Equal(t, "gemini", cfg.ModelGateway.Provider)
		})

		t.Run("No Gemini -> OpenAI", func(t *testing.T) {
			setAllGatewayKeys(t)
			t.Setenv("OPENROUTER_API_KEY", "")
			t.Setenv("XAI_API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			cfg := &Config{}
			cfg.applyEnvOverrides()
			assert.Equal(t, "oa", cfg.ModelGateway.APIKey)
			assert.Equal(t, "openai", cfg.ModelGateway.Provider)
		})

		t.Run("No OpenAI -> Anthropic", func(t *testing.T) {
			setAllGatewayKeys(t)
			t.Setenv("OPENROUTER_API_KEY", "")
			t.Setenv("XAI_API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("OPENAI_API_KEY", "")
			cfg := &Config{}
			cfg.applyEnvOverrides()
			assert.Equal(t, "ant", cfg.ModelGateway.APIKey)
			assert.Equal(t, "anthropic", cfg.ModelGateway.Provider)
		})

		t.Run("No Anthropic -> ZAI", func(t *testing.T) {
			setAllGatewayKeys(t)
			t.Setenv("OPENROUTER_API_KEY", "")
			t.Setenv("XAI_API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("ANTHROPIC_API_KEY", "")
			cfg := &Config{}
			cfg.applyEnvOverrides()
			assert.Equal(t, "zai", cfg.ModelGateway.APIKey)
			assert.Equal(t, "zai", cfg.ModelGateway.Provider)
		})
	})
}

func setAllGatewayKeys(t *testing.T) {
	t.Setenv("ZAI_API_KEY", "zai")
	t.Setenv("ANTHROPIC_API_KEY", "ant")
	t.Setenv("OPENAI_API_KEY", "oa")
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("XAI_API_KEY", "xai")
	t.Setenv("OPENROUTER_API_KEY", "or")
}

func TestEnvOverrides_Embedding(t *testing.T) {
	t.Run("GENAI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GENAI_API_KEY sets provider if ollama", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")

		cfg := &Config{}
		cfg.Embedding.Provider = "ollama"
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GENAI_API_KEY does not override other providers", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "gen-key")

		cfg := &Config{}
		cfg.Embedding.Provider = "openai"
		cfg.applyEnvOverrides()

		assert.Equal(t, "gen-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "openai", cfg.Embedding.Provider)
	})

	t.Run("Ollama Overrides", func(t *testing.T) {
		t.Setenv("OLLAMA_ENDPOINT", "http://custom:11434")
		t.Setenv("OLLAMA_EMBEDDING_MODEL", "custom-model")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://custom:11434", cfg.Embedding.OllamaEndpoint)
		assert.Equal(t, "custom-model", cfg.Embedding.OllamaModel)
	})
}

func TestEnvOverrides_Store(t *testing.T) {
	t.Run("Database Path", func(t *testing.T) {
		t.Setenv("CONSENSUSCORE_DB", "/tmp/test.db")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/test.db", cfg.Store.DatabasePath)
	})
}
