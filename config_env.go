package aigateway

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnvOverlay overlays the enumerated environment variables onto cfg,
// applied after the file is loaded so the environment always wins. Unset
// variables leave the existing value untouched; malformed numeric/bool
// values are reported rather than silently ignored.
func ApplyEnvOverlay(cfg *Config) error {
	var errs []error
	set := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if v, ok := os.LookupEnv("HOST"); ok {
		cfg.Server.Host = v
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("PORT: %w", err))
		} else {
			cfg.Server.Port = n
		}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Server.LogLevel = v
	}
	if v, ok := os.LookupEnv("MAX_CONCURRENT_REQUESTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("MAX_CONCURRENT_REQUESTS: %w", err))
		} else {
			cfg.Server.MaxConcurrentRequests = n
		}
	}
	if v, ok := os.LookupEnv("REQUEST_TIMEOUT_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("REQUEST_TIMEOUT_MS: %w", err))
		} else {
			cfg.Server.RequestTimeoutMS = n
		}
	}

	if v, ok := os.LookupEnv("CACHE_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			set(fmt.Errorf("CACHE_ENABLED: %w", err))
		} else {
			cfg.Cache.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("CACHE_TTL_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("CACHE_TTL_SECONDS: %w", err))
		} else {
			cfg.Cache.TTLSeconds = n
		}
	}
	if v, ok := os.LookupEnv("CACHE_MAX_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("CACHE_MAX_SIZE: %w", err))
		} else {
			cfg.Cache.MaxSize = n
		}
	}

	if v, ok := os.LookupEnv("RATE_LIMIT_WINDOW_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("RATE_LIMIT_WINDOW_MS: %w", err))
		} else {
			cfg.RateLimit.WindowMS = n
		}
	}
	if v, ok := os.LookupEnv("RATE_LIMIT_MAX_REQUESTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("RATE_LIMIT_MAX_REQUESTS: %w", err))
		} else {
			cfg.RateLimit.MaxRequests = n
		}
	}

	if v, ok := os.LookupEnv("JWT_SECRET"); ok {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := os.LookupEnv("JWT_EXPIRES_IN"); ok {
		cfg.Auth.JWTExpiresIn = v
	}
	if v, ok := os.LookupEnv("BCRYPT_ROUNDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("BCRYPT_ROUNDS: %w", err))
		} else {
			cfg.Auth.BcryptRounds = n
		}
	}

	if v, ok := os.LookupEnv("DEFAULT_ROUTING_STRATEGY"); ok {
		cfg.Routing.DefaultStrategy = StrategyMode(v)
	}
	if v, ok := os.LookupEnv("ENABLE_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			set(fmt.Errorf("ENABLE_FALLBACK: %w", err))
		} else {
			cfg.Routing.EnableFallback = b
		}
	}

	if v, ok := os.LookupEnv("HEALTH_CHECK_INTERVAL_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("HEALTH_CHECK_INTERVAL_MS: %w", err))
		} else {
			cfg.HealthCheck.IntervalMS = n
		}
	}
	if v, ok := os.LookupEnv("CIRCUIT_BREAKER_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD: %w", err))
		} else {
			cfg.HealthCheck.CircuitBreakerThreshold = n
		}
	}
	if v, ok := os.LookupEnv("CIRCUIT_BREAKER_RESET_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			set(fmt.Errorf("CIRCUIT_BREAKER_RESET_MS: %w", err))
		} else {
			cfg.HealthCheck.CircuitBreakerResetMS = n
		}
	}

	if len(errs) == 0 {
		return nil
	}
	msg := "invalid environment overlay values:"
	for _, e := range errs {
		msg += " " + e.Error() + ";"
	}
	return fmt.Errorf("%s", msg)
}

// ProviderCredentialEnv returns the value of a provider's credential
// environment variable, matching the "one credential block per provider"
// convention (OPENAI_API_KEY, ANTHROPIC_API_KEY, AZURE_OPENAI_API_KEY, ...).
// Providers with multi-variable credential blocks (Azure, AWS) are read via
// their own named lookups by the caller.
func ProviderCredentialEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}
