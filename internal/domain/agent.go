package domain

// AgentConfig holds the model settings an agent was configured with.
type AgentConfig struct {
	// Provider is the agent's preferred provider. Empty means no preference;
	// the router falls back to the default client.
	Provider string `json:"provider,omitempty"`

	Model        string         `json:"model,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Streaming    bool           `json:"streaming,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// Agent is a named actor with its own model configuration.
type Agent struct {
	Name   string      `json:"name"`
	Config AgentConfig `json:"config"`
}
