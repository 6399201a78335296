// Package config loads per-stage configuration from environment variables,
// following the envOrDefault idiom used throughout this codebase. Each
// pipeline stage has its own Config type; none are read more than once, at
// process startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationMS(key string, fallbackMS int) time.Duration {
	v := envOrDefault(key, "")
	if v == "" {
		return time.Duration(fallbackMS) * time.Millisecond
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(fallbackMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func envInt(key string, fallback int) int {
	v := envOrDefault(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := envOrDefault(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := envOrDefault(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Broker holds the JetStream connection settings shared by every stage
// that consumes or produces pipeline events.
type Broker struct {
	URL              string // NATS_URL
	ClientID         string // per-stage client identity
	ConsumerGroup    string // durable consumer / queue group name
	Partitions       int    // NATS_PARTITIONS, subjects per topic
	MaxDeliver       int    // poison-message threshold, default 8
	ShutdownDeadline time.Duration
}

func loadBroker(stagePrefix, consumerGroup string) Broker {
	return Broker{
		URL:              envOrDefault("NATS_URL", "nats://127.0.0.1:4222"),
		ClientID:         envOrDefault(stagePrefix+"_CLIENT_ID", consumerGroup),
		ConsumerGroup:    envOrDefault(stagePrefix+"_CONSUMER_GROUP", consumerGroup),
		Partitions:       envInt("NATS_PARTITIONS", 4),
		MaxDeliver:       envInt(stagePrefix+"_MAX_DELIVER", 8),
		ShutdownDeadline: envDurationMS(stagePrefix+"_SHUTDOWN_DEADLINE_MS", 30_000),
	}
}

// RPCPeer holds dial settings for an outbound RPC dependency (Registry or
// Anomaly Scorer).
type RPCPeer struct {
	Addr       string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

func loadRPCPeer(stagePrefix, peer, defaultAddr string, defaultRetries int) RPCPeer {
	p := stagePrefix + "_" + peer
	return RPCPeer{
		Addr:       envOrDefault(p+"_ADDR", defaultAddr),
		Timeout:    envDurationMS(p+"_TIMEOUT_MS", 5_000),
		Retries:    envInt(p+"_RETRIES", defaultRetries),
		RetryDelay: envDurationMS(p+"_RETRY_DELAY_MS", 1_000),
	}
}

// GatewayConfig configures cmd/gateway.
type GatewayConfig struct {
	Broker
	HTTPAddr               string
	GRPCAddr               string
	Registry               RPCPeer
	VerifyDevice           bool
	ProducerMaxAttempts    int
	ProducerInitialBackoff time.Duration
	ProducerMaxBackoff     time.Duration
	LogLevel               string
}

// LoadGateway loads GatewayConfig from the environment.
func LoadGateway() (*GatewayConfig, error) {
	return &GatewayConfig{
		Broker:                 loadBroker("GATEWAY", "gateway"),
		HTTPAddr:               envOrDefault("GATEWAY_HTTP_ADDR", ":8080"),
		GRPCAddr:               envOrDefault("GATEWAY_GRPC_ADDR", ":9080"),
		Registry:               loadRPCPeer("GATEWAY", "REGISTRY", "127.0.0.1:9001", 3),
		VerifyDevice:           envBool("GATEWAY_VERIFY_DEVICE", true),
		ProducerMaxAttempts:    envInt("GATEWAY_PRODUCER_MAX_ATTEMPTS", 8),
		ProducerInitialBackoff: envDurationMS("GATEWAY_PRODUCER_INITIAL_BACKOFF_MS", 100),
		ProducerMaxBackoff:     envDurationMS("GATEWAY_PRODUCER_MAX_BACKOFF_MS", 30_000),
		LogLevel:               envOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// ClampBounds is a metric's acceptable physiological range.
type ClampBounds struct {
	Min float64
	Max float64
}

// NormalizerConfig configures cmd/normalizer.
type NormalizerConfig struct {
	Broker
	InputTopic   string
	OutputTopic  string
	HeartRate    ClampBounds
	OxygenSat    ClampBounds
	TemperatureC ClampBounds
	LogLevel     string
}

// LoadNormalizer loads NormalizerConfig from the environment.
func LoadNormalizer() (*NormalizerConfig, error) {
	return &NormalizerConfig{
		Broker:       loadBroker("NORMALIZER", "normalizer"),
		InputTopic:   envOrDefault("NORMALIZER_INPUT_TOPIC", "raw"),
		OutputTopic:  envOrDefault("NORMALIZER_OUTPUT_TOPIC", "normalized"),
		HeartRate:    ClampBounds{Min: envFloat("CLAMP_HEART_RATE_MIN", 20), Max: envFloat("CLAMP_HEART_RATE_MAX", 240)},
		OxygenSat:    ClampBounds{Min: envFloat("CLAMP_OXYGEN_SATURATION_MIN", 50), Max: envFloat("CLAMP_OXYGEN_SATURATION_MAX", 100)},
		TemperatureC: ClampBounds{Min: envFloat("CLAMP_TEMPERATURE_C_MIN", 30), Max: envFloat("CLAMP_TEMPERATURE_C_MAX", 45)},
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// EnricherConfig configures cmd/enricher.
type EnricherConfig struct {
	Broker
	InputTopic  string
	OutputTopic string
	Registry    RPCPeer
	LogLevel    string
}

// LoadEnricher loads EnricherConfig from the environment.
func LoadEnricher() (*EnricherConfig, error) {
	return &EnricherConfig{
		Broker:      loadBroker("ENRICHER", "enricher"),
		InputTopic:  envOrDefault("ENRICHER_INPUT_TOPIC", "normalized"),
		OutputTopic: envOrDefault("ENRICHER_OUTPUT_TOPIC", "enriched"),
		Registry:    loadRPCPeer("ENRICHER", "REGISTRY", "127.0.0.1:9001", 3),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// RuleThresholds holds the combined-rule constants (R4's very-high heart
// rate and low oxygen saturation thresholds), overridable per deployment.
type RuleThresholds struct {
	HRVeryHigh float64
	SpO2Low    float64
}

// RulesConfig configures cmd/rules.
type RulesConfig struct {
	Broker
	InputTopic   string
	ScoredTopic  string
	AlertsTopic  string
	Anomaly      RPCPeer
	RuleDefaults RuleThresholds
	LogLevel     string
}

// LoadRules loads RulesConfig from the environment.
func LoadRules() (*RulesConfig, error) {
	return &RulesConfig{
		Broker:      loadBroker("RULES", "rules-engine"),
		InputTopic:  envOrDefault("RULES_INPUT_TOPIC", "enriched"),
		ScoredTopic: envOrDefault("RULES_SCORED_TOPIC", "scored"),
		AlertsTopic: envOrDefault("RULES_ALERTS_TOPIC", "alerts"),
		Anomaly:     loadRPCPeer("RULES", "ANOMALY", "127.0.0.1:9002", 0),
		RuleDefaults: RuleThresholds{
			HRVeryHigh: envFloat("RULE_HR_VERY_HIGH", 120),
			SpO2Low:    envFloat("RULE_SPO2_LOW", 90),
		},
		LogLevel: envOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// RegistryConfig configures cmd/registry.
type RegistryConfig struct {
	DatabaseURL  string
	GRPCAddr     string
	SeedDemoData bool
	LogLevel     string
}

// LoadRegistry loads RegistryConfig from the environment.
func LoadRegistry() (*RegistryConfig, error) {
	dbURL := os.Getenv("REGISTRY_DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("REGISTRY_DATABASE_URL is required")
	}
	return &RegistryConfig{
		DatabaseURL:  dbURL,
		GRPCAddr:     envOrDefault("REGISTRY_GRPC_ADDR", ":9001"),
		SeedDemoData: envBool("REGISTRY_SEED_DEMO_DATA", false),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// ScorerConfig configures cmd/anomaly.
type ScorerConfig struct {
	GRPCAddr        string
	RedisAddr       string
	CacheEnabled    bool
	Window          int
	MinSamples      int
	BaselineTTL     time.Duration
	DedupeByEventID bool
	LogLevel        string
}

// LoadScorer loads ScorerConfig from the environment.
func LoadScorer() (*ScorerConfig, error) {
	return &ScorerConfig{
		GRPCAddr:        envOrDefault("SCORER_GRPC_ADDR", ":9002"),
		RedisAddr:       envOrDefault("SCORER_REDIS_ADDR", "127.0.0.1:6379"),
		CacheEnabled:    envBool("SCORER_CACHE_ENABLED", true),
		Window:          envInt("SCORER_WINDOW", 100),
		MinSamples:      envInt("SCORER_MIN_SAMPLES", 10),
		BaselineTTL:     envDurationMS("SCORER_BASELINE_TTL_MS", int((7 * 24 * time.Hour).Milliseconds())),
		DedupeByEventID: envBool("SCORER_DEDUPE_BY_EVENT_ID", false),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
	}, nil
}
