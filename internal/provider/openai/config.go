package openai

// Config contains OpenAI provider configuration.
// Transport fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds); also bounds
//     the async call future and the streaming aggregation wait
//   - MaxRetries: Maps to option.WithMaxRetries()
//
// Routing fields (Priority, Expertise, Capabilities) are consumed by the
// router, not by the SDK.
type Config struct {
	APIKey       string   `env:"OPENAI_API_KEY"`
	BaseURL      string   `env:"OPENAI_BASE_URL"     envDefault:"https://api.openai.com/v1"`
	Model        string   `env:"OPENAI_MODEL"        envDefault:"gpt-4o-mini"`
	Temperature  float64  `env:"OPENAI_TEMPERATURE"  envDefault:"0.7"`
	MaxTokens    int      `env:"OPENAI_MAX_TOKENS"   envDefault:"2048"`
	Timeout      int      `env:"OPENAI_TIMEOUT"      envDefault:"60"`
	MaxRetries   int      `env:"OPENAI_MAX_RETRIES"  envDefault:"3"`
	Priority     int      `env:"OPENAI_PRIORITY"     envDefault:"90"`
	Expertise    []string `env:"OPENAI_EXPERTISE"    envSeparator:"," envDefault:"code,reasoning,general assistance"`
	Capabilities []string `env:"OPENAI_CAPABILITIES" envSeparator:"," envDefault:"code,reasoning"`
}
