package aigateway

import "github.com/ferro-labs/ai-gateway/internal/ratelimit"

// Config holds the configuration for the AI Gateway.
type Config struct {
	// Server holds listen address and transport-level timeouts.
	Server ServerConfig `json:"server" yaml:"server"`
	// Strategy defines how requests are routed (e.g., single, fallback, loadbalance).
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	// Targets is a list of provider targets to route requests to.
	Targets []Target `json:"targets" yaml:"targets"`
	// Plugins configuration (optional).
	Plugins []PluginConfig `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	// Auth configures JWT issuance/verification and password hashing cost.
	Auth AuthConfig `json:"auth" yaml:"auth"`
	// RateLimit configures the global request-rate ceiling and the per-tier
	// table layered on top of it.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	// Cache configures the response cache.
	Cache CacheConfig `json:"cache" yaml:"cache"`
	// Routing holds gateway-wide routing/fallback defaults.
	Routing RoutingConfig `json:"routing" yaml:"routing"`
	// HealthCheck configures background provider health probing.
	HealthCheck HealthCheckConfig `json:"health_check" yaml:"health_check"`
	// Aliases maps a client-facing model name to the model sent upstream.
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// ServerConfig holds listen address and per-request limits.
type ServerConfig struct {
	Host                  string `json:"host" yaml:"host"`
	Port                  int    `json:"port" yaml:"port"`
	LogLevel              string `json:"log_level" yaml:"log_level"`
	MaxConcurrentRequests int    `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`
	RequestTimeoutMS      int    `json:"request_timeout_ms" yaml:"request_timeout_ms"`
}

// AuthConfig configures JWT issuance and password/key hashing cost.
type AuthConfig struct {
	JWTSecret    string `json:"jwt_secret" yaml:"jwt_secret"`
	JWTExpiresIn string `json:"jwt_expires_in" yaml:"jwt_expires_in"` // e.g. "1h"
	BcryptRounds int    `json:"bcrypt_rounds" yaml:"bcrypt_rounds"`
}

// RateLimitConfig configures the global fixed-window ceiling and the
// per-tier table layered on top of it by internal/ratelimit.
type RateLimitConfig struct {
	WindowMS    int                                 `json:"window_ms" yaml:"window_ms"`
	MaxRequests int                                 `json:"max_requests" yaml:"max_requests"`
	Tiers       map[string]ratelimit.TierLimits `json:"tiers,omitempty" yaml:"tiers,omitempty"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	TTLSeconds int  `json:"ttl_seconds" yaml:"ttl_seconds"`
	MaxSize    int  `json:"max_size" yaml:"max_size"`
}

// RoutingConfig holds gateway-wide routing/fallback defaults, distinct from
// the per-request StrategyConfig carried on Config.Strategy.
type RoutingConfig struct {
	DefaultStrategy StrategyMode `json:"default_strategy" yaml:"default_strategy"`
	EnableFallback  bool         `json:"enable_fallback" yaml:"enable_fallback"`
}

// HealthCheckConfig holds health-probing and circuit-breaker settings read
// from config and the environment. The gateway does not consult them when
// building breakers; only a Target's own CircuitBreaker block creates one.
type HealthCheckConfig struct {
	IntervalMS               int `json:"interval_ms" yaml:"interval_ms"`
	CircuitBreakerThreshold  int `json:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold"`
	CircuitBreakerResetMS    int `json:"circuit_breaker_reset_ms" yaml:"circuit_breaker_reset_ms"`
}

// StrategyConfig defines the routing strategy.
type StrategyConfig struct {
	Mode       StrategyMode `json:"mode" yaml:"mode"`
	Conditions []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"` // For conditional routing
}

// StrategyMode represents the routing strategy mode.
type StrategyMode string

// StrategyMode constants define the supported routing strategies.
const (
	ModeSingle      StrategyMode = "single"
	ModeFallback    StrategyMode = "fallback"
	ModeLoadBalance StrategyMode = "loadbalance"
	ModeConditional StrategyMode = "conditional"

	// The six scored strategies implemented by the router package (spec
	// §4.1). Unlike the four modes above, these build their candidate pool
	// from the provider/model catalog and circuit-breaker state rather than
	// a static ordered target list.
	ModeQualityFirst   StrategyMode = "quality-first"
	ModeCostOptimized  StrategyMode = "cost-optimized"
	ModeSpeedPriority  StrategyMode = "speed-priority"
	ModeBalanced       StrategyMode = "balanced"
	ModeLoadBalanced   StrategyMode = "load-balanced"
	ModeFallbackChain  StrategyMode = "fallback-chain"
)

// scoredStrategyModes are the StrategyMode values dispatched through
// router.Router instead of internal/strategies' static-target executors.
func scoredStrategyModes() map[StrategyMode]bool {
	return map[StrategyMode]bool{
		ModeQualityFirst:  true,
		ModeCostOptimized: true,
		ModeSpeedPriority: true,
		ModeBalanced:      true,
		ModeLoadBalanced:  true,
		ModeFallbackChain: true,
	}
}

// Condition represents a condition for conditional routing.
type Condition struct {
	Key       string `json:"key" yaml:"key"`
	Value     string `json:"value" yaml:"value"`
	TargetKey string `json:"target_key" yaml:"target_key"`
}

// Target represents a specific provider target.
type Target struct {
	// VirtualKey is the unique identifier for the provider (or a virtual key in the vault).
	VirtualKey string `json:"virtual_key" yaml:"virtual_key"`
	// Weight is used for load balancing.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Retry configuration for this target.
	Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configuration for this target (optional).
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts int `json:"attempts" yaml:"attempts"`
}

// CircuitBreakerConfig configures the per-provider circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the circuit
	// opens. Defaults to 5.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// SuccessThreshold is the number of consecutive successes in half-open state
	// required to close the circuit. Defaults to 1.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
	// Timeout is the duration the circuit stays open before transitioning to
	// half-open (e.g. "30s"). Defaults to "30s".
	Timeout string `json:"timeout" yaml:"timeout"`
}

// PluginConfig holds plugin configuration.
type PluginConfig struct {
	Name    string                 `json:"name" yaml:"name"`
	Type    string                 `json:"type" yaml:"type"`
	Stage   string                 `json:"stage" yaml:"stage"`
	Enabled bool                   `json:"enabled" yaml:"enabled"`
	Config  map[string]interface{} `json:"config" yaml:"config"`
}
