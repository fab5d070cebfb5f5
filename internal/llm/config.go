package llm

import (
	"errors"
	"fmt"
	"net/url"
)

// Provider values for Config.Provider.
const (
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

// Config selects the model endpoint and models.
type Config struct {
	Provider       string
	Host           string
	Token          string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
}

// Validate checks that an OpenAI-compatible config names a host and models.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOffline:
		return nil
	case ProviderOpenAI, "":
	default:
		return fmt.Errorf("unknown llm provider %q", c.Provider)
	}
	if c.Host == "" {
		return errors.New("llm host is required")
	}
	if _, err := url.ParseRequestURI(c.Host); err != nil {
		return fmt.Errorf("invalid llm host: %w", err)
	}
	if c.ChatModel == "" {
		return errors.New("llm chat model is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("llm embedding model is required")
	}
	return nil
}

func (c Config) token() string {
	if c.Token == "" {
		// Local OpenAI-compatible servers ignore the token but the client requires one.
		return "none"
	}
	return c.Token
}
