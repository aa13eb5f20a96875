package config

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`

	// AllowedOrigins are the CORS origins of the HTTP API.
	// Default: *
	AllowedOrigins []string `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS"`
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           8000,
		AllowedOrigins: []string{"*"},
	}
}
