package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Verify   VerifyConfig   `env:",prefix=VERIFY_"`
	Security SecurityConfig `env:",prefix="`
	GitHub   ProviderConfig `env:",prefix=GITHUB_"`
	Google   ProviderConfig `env:",prefix=GOOGLE_"`
	Mailer   MailerConfig   `env:",prefix=MAILER_"`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	BaseURL      string   `env:"BASE_URL,default=http://localhost:8080"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host           string `env:"HOST,default=localhost"`
	Port           string `env:"PORT,default=5432"`
	User           string `env:"USER,default=quillnotes"`
	Password       string `env:"PASSWORD,default=quillnotes_password"`
	DBName         string `env:"DB,default=quillnotes_auth"`
	SSLMode        string `env:"SSLMODE,default=disable"`
	MigrationsPath string `env:"MIGRATIONS_PATH,default=migrations"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// SessionConfig controls server-side session rows and the signed cookie
// that references them.
type SessionConfig struct {
	CookieSecret string   `env:"COOKIE_SECRET,required"`
	CookieName   string   `env:"COOKIE_NAME,default=qn_session"`
	TTL          Duration `env:"TTL,default=30d"`
}

// VerifyConfig controls one-time verification codes and the short-lived
// server-side stash used by onboarding and reset-password flows.
type VerifyConfig struct {
	Period   Duration `env:"PERIOD,default=10m"`
	Digits   int      `env:"DIGITS,default=6"`
	Charset  string   `env:"CHARSET,default=0123456789"`
	StashTTL Duration `env:"STASH_TTL,default=10m"`
}

type SecurityConfig struct {
	BCryptCost int `env:"BCRYPT_COST,default=12"`
}

// ProviderConfig holds one OAuth provider's static registration.
// A provider with an empty client id is not registered.
type ProviderConfig struct {
	ClientID     string `env:"CLIENT_ID,default="`
	ClientSecret string `env:"CLIENT_SECRET,default="`
	RedirectURL  string `env:"REDIRECT_URL,default="`
}

func (p ProviderConfig) Enabled() bool {
	return p.ClientID != ""
}

type MailerConfig struct {
	Endpoint string `env:"ENDPOINT,default=https://api.resend.com/emails"`
	APIKey   string `env:"API_KEY,default="`
	From     string `env:"FROM,default=Quill Notes <hello@quillnotes.app>"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns the PostgreSQL connection string in key=value form.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns the PostgreSQL connection string in URL form, used by the
// migration runner.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// Address returns the Redis connection address.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.Session.CookieSecret) < 32 {
		return nil, fmt.Errorf("SESSION_COOKIE_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context.
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
