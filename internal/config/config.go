package config

import "github.com/kelseyhightower/envconfig"

// Config is bound from RECHARGE_* environment variables; main applies flag
// overrides on top. An empty DatabaseDSN selects the in-memory store with
// a seeded dev catalog.
type Config struct {
	Env              string `envconfig:"ENV" default:"dev"`
	Port             int    `envconfig:"PORT" default:"5000"`
	DatabaseDSN      string `envconfig:"DATABASE_DSN"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	PayAPIKey        string `envconfig:"PAY_API_KEY"`
	PayWebhookSecret string `envconfig:"PAY_WEBHOOK_SECRET"`
	PayBaseURL       string `envconfig:"PAY_BASE_URL" default:"https://api.cardpoint.example"`
	SuccessURL       string `envconfig:"SUCCESS_URL" default:"http://127.0.0.1:3000/checkout/success"`
	CancelURL        string `envconfig:"CANCEL_URL" default:"http://127.0.0.1:3000/checkout/cancel"`
	LogJSON          bool   `envconfig:"LOG_JSON" default:"true"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
}

func EnvDefaults() (Config, error) {
	var c Config
	err := envconfig.Process("recharge", &c)
	return c, err
}
