package config

// DefaultSignatureHeader is the header name the chatbot gateway verifies.
const DefaultSignatureHeader = "X-NCP-CHATBOT_SIGNATURE"

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     3000,
			LogLevel: "info",
		},
		Provider: ProviderConfig{
			SignatureHeader: DefaultSignatureHeader,
			TimeoutSeconds:  10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
