package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Scoring failure policies. Only fail-open-zero is implemented: a scoring
// outage degrades to a zero score and the financial write proceeds.
const ScoringFailOpenZero = "fail-open-zero"

// Config holds application configuration (env + Viper).
type Config struct {
	Env           string
	Port          string
	SessionSecret string
	DatabaseURL   string
	RedisURL      string

	// ML scoring service
	MLURL                string
	MLTimeout            time.Duration
	ScoringFailurePolicy string

	// Fraud thresholds: an alert is raised above RiskThreshold, a case is
	// opened at or above CaseThreshold (alerts are the lower bar).
	RiskThreshold float64
	CaseThreshold float64

	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	mlURL := viper.GetString("ML_URL")
	if mlURL == "" {
		mlURL = "http://127.0.0.1:5001/predict"
	}
	mlTimeoutMs := viper.GetInt("ML_TIMEOUT_MS")
	if mlTimeoutMs <= 0 {
		mlTimeoutMs = 3000
	}

	riskThreshold := viper.GetFloat64("FRAUD_RISK_THRESHOLD")
	if riskThreshold == 0 {
		riskThreshold = 0.10
	}
	caseThreshold := viper.GetFloat64("FRAUD_CASE_THRESHOLD")
	if caseThreshold == 0 {
		caseThreshold = 0.70
	}

	policy := viper.GetString("SCORING_FAILURE_POLICY")
	if policy == "" {
		policy = ScoringFailOpenZero
	}

	return &Config{
		Env:                  env,
		Port:                 port,
		SessionSecret:        viper.GetString("SESSION_SECRET"),
		DatabaseURL:          viper.GetString("DATABASE_URL"),
		RedisURL:             viper.GetString("REDIS_URL"),
		MLURL:                mlURL,
		MLTimeout:            time.Duration(mlTimeoutMs) * time.Millisecond,
		ScoringFailurePolicy: policy,
		RiskThreshold:        riskThreshold,
		CaseThreshold:        caseThreshold,
		FrontendURLEndsWith:  viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:          viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:    strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
	}, nil
}
