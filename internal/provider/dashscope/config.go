package dashscope

// Config contains DashScope (Alibaba Cloud) provider configuration.
// MaxRetries is accepted for parity with the shared provider configuration
// surface but is not exercised by this client; the HTTP transport makes a
// single attempt per call.
type Config struct {
	APIKey       string   `env:"DASHSCOPE_API_KEY"`
	Endpoint     string   `env:"DASHSCOPE_ENDPOINT"     envDefault:"https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"`
	Model        string   `env:"DASHSCOPE_MODEL"        envDefault:"qwen-max"`
	Temperature  float64  `env:"DASHSCOPE_TEMPERATURE"  envDefault:"0.7"`
	MaxTokens    int      `env:"DASHSCOPE_MAX_TOKENS"   envDefault:"2048"`
	Timeout      int      `env:"DASHSCOPE_TIMEOUT"      envDefault:"60"`
	MaxRetries   int      `env:"DASHSCOPE_MAX_RETRIES"  envDefault:"3"`
	Priority     int      `env:"DASHSCOPE_PRIORITY"     envDefault:"80"`
	Expertise    []string `env:"DASHSCOPE_EXPERTISE"    envSeparator:"," envDefault:"chinese,translation,writing"`
	Capabilities []string `env:"DASHSCOPE_CAPABILITIES" envSeparator:"," envDefault:"reasoning"`
}
