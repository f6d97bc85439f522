package database

// Config holds database connection settings.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST" default:"localhost"`
	Port           string `yaml:"port" envconfig:"DB_PORT" default:"5432"`
	User           string `yaml:"user" envconfig:"DB_USER" default:"postgres"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME" default:"deepgov"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE" default:"disable"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS" default:"10"`
}
