package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/geoquiz/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	LLM struct {
		Provider string
		APIKey   string
		Timeout  time.Duration
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.LLM.Provider = "gemini"
	c.LLM.Timeout = 5 * time.Second
	return c
}

func writeFile(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		file   string
		env    map[string]string
		assert func(t *testing.T, c testConfig)
	}{
		"defaults survive without file and env": {
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, int32(8080), c.HTTP.Port)
				assert.Equal(t, "gemini", c.LLM.Provider)
				assert.Equal(t, 5*time.Second, c.LLM.Timeout)
			},
		},

		"file overrides defaults": {
			file: "http:\n  port: 9000\nllm:\n  timeout: 2s\n",
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, int32(9000), c.HTTP.Port)
				assert.Equal(t, 2*time.Second, c.LLM.Timeout)
				assert.Equal(t, "gemini", c.LLM.Provider)
			},
		},

		"environment overrides file": {
			file: "llm:\n  provider: anthropic\n",
			env:  map[string]string{"LLM_PROVIDER": "openai"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, "openai", c.LLM.Provider)
			},
		},

		"alias environment variable is honored": {
			env: map[string]string{"GEMINI_API_KEY": "secret", "PORT": "7000"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, "secret", c.LLM.APIKey)
				assert.Equal(t, int32(7000), c.HTTP.Port)
			},
		},

		"canonical variable wins over alias": {
			env: map[string]string{"GEMINI_API_KEY": "alias", "LLM_APIKEY": "canonical"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, "canonical", c.LLM.APIKey)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var file string
			if tt.file != "" {
				file = writeFile(t, tt.file)
			}

			c := defaults()
			err := config.Load(file, &c,
				config.WithEnvAlias("llm.apikey", "GEMINI_API_KEY"),
				config.WithEnvAlias("http.port", "PORT"),
			)
			require.NoError(t, err)

			tt.assert(t, c)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c := defaults()
	err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), &c)
	require.Error(t, err)
}
