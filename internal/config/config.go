package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Windows defines the three freshness thresholds for a data domain
type Windows struct {
	Fresh      time.Duration // Below this: tier=fresh, serve immediately
	Acceptable time.Duration // Below this: tier=acceptable, serve with notice
	HardCutoff time.Duration // At or past this: data must not be used
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// ProviderConfig holds upstream odds/stats provider configuration
type ProviderConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	RetryAttempts     int
	RetryInitialDelay time.Duration
}

// DetectorConfig holds discrepancy and sharp-signal thresholds.
// The strength boundaries are fixed policy constants, not statistically fit;
// they are env-overridable rather than hard-coded at call sites.
type DetectorConfig struct {
	MinBookmakers     int
	MinDiscrepancyPts float64 // Percentage points

	SharpBooks             []string
	ConsensusDivergencePts float64

	SteamMinBooks int
	SteamWindow   time.Duration
	SteamMinMove  float64 // Line points

	PublicMajorityPct float64 // Bet% above which a side counts as the public side
	RLMMinMovePts     float64 // Implied-probability move, percentage points

	ModerateScore   float64
	StrongScore     float64
	VeryStrongScore float64
}

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	PostgresDSN    string
	RedisURL       string
	Provider       ProviderConfig
	Detector       DetectorConfig
	Freshness      map[models.Domain]Windows
	RefreshTimeout time.Duration
	Sports         []string
	StartBankroll  float64
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        getEnv("SERVER_ADDR", ":8080"),
			CORSOrigins: getEnvStringSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Provider: ProviderConfig{
			APIKey:            getEnv("ODDS_API_KEY", ""),
			BaseURL:           getEnv("ODDS_API_BASE_URL", "https://api.the-odds-api.com/v4"),
			RequestsPerMinute: getEnvInt("PROVIDER_REQUESTS_PER_MINUTE", 30),
			RetryAttempts:     getEnvInt("PROVIDER_RETRY_ATTEMPTS", 2),
			RetryInitialDelay: getEnvDuration("PROVIDER_RETRY_INITIAL_DELAY", 200*time.Millisecond),
		},
		Detector: DetectorConfig{
			MinBookmakers:          getEnvInt("MIN_BOOKMAKERS", 2),
			MinDiscrepancyPts:      getEnvFloat("MIN_DISCREPANCY_PTS", 0.5),
			SharpBooks:             getEnvStringSlice("SHARP_BOOKS", []string{"pinnacle", "circa", "bookmaker"}),
			ConsensusDivergencePts: getEnvFloat("CONSENSUS_DIVERGENCE_PTS", 2.0),
			SteamMinBooks:          getEnvInt("STEAM_MIN_BOOKS", 3),
			SteamWindow:            getEnvDuration("STEAM_WINDOW", 10*time.Minute),
			SteamMinMove:           getEnvFloat("STEAM_MIN_MOVE", 0.5),
			PublicMajorityPct:      getEnvFloat("PUBLIC_MAJORITY_PCT", 55),
			RLMMinMovePts:          getEnvFloat("RLM_MIN_MOVE_PTS", 1.0),
			ModerateScore:          getEnvFloat("STRENGTH_MODERATE_SCORE", 50),
			StrongScore:            getEnvFloat("STRENGTH_STRONG_SCORE", 70),
			VeryStrongScore:        getEnvFloat("STRENGTH_VERY_STRONG_SCORE", 90),
		},
		Freshness: map[models.Domain]Windows{
			models.DomainOdds: {
				Fresh:      getEnvDuration("ODDS_FRESH_WINDOW", 5*time.Minute),
				Acceptable: getEnvDuration("ODDS_ACCEPTABLE_WINDOW", 30*time.Minute),
				HardCutoff: getEnvDuration("ODDS_HARD_CUTOFF", 2*time.Hour),
			},
			models.DomainScores: {
				Fresh:      getEnvDuration("SCORES_FRESH_WINDOW", 1*time.Minute),
				Acceptable: getEnvDuration("SCORES_ACCEPTABLE_WINDOW", 10*time.Minute),
				HardCutoff: getEnvDuration("SCORES_HARD_CUTOFF", 1*time.Hour),
			},
			models.DomainLineups: {
				Fresh:      getEnvDuration("LINEUPS_FRESH_WINDOW", 10*time.Minute),
				Acceptable: getEnvDuration("LINEUPS_ACCEPTABLE_WINDOW", 1*time.Hour),
				HardCutoff: getEnvDuration("LINEUPS_HARD_CUTOFF", 6*time.Hour),
			},
			models.DomainMatchups: {
				Fresh:      getEnvDuration("MATCHUPS_FRESH_WINDOW", 15*time.Minute),
				Acceptable: getEnvDuration("MATCHUPS_ACCEPTABLE_WINDOW", 1*time.Hour),
				HardCutoff: getEnvDuration("MATCHUPS_HARD_CUTOFF", 12*time.Hour),
			},
		},
		RefreshTimeout: getEnvDuration("REFRESH_TIMEOUT", 3*time.Second),
		Sports:         getEnvStringSlice("SPORTS", []string{"basketball_nba"}),
		StartBankroll:  getEnvFloat("START_BANKROLL", 1000),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
