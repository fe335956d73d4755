package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Gateway identity. Each gateway instance represents exactly one domain;
	// the address is derived from the key.
	PrivateKey string // hex-encoded secp256k1 private key
	DomainRole string // "consumer" | "provider" (shapes /service_info payloads)

	// Ledger access. Empty LedgerURL runs an embedded single-node ledger and
	// serves it under /ledger for peer gateways.
	LedgerURL           string        // ex: "http://10.5.15.16:8080/ledger" (empty = embedded)
	BlockInterval       time.Duration // embedded mode block sealing interval
	ReadTimeout         time.Duration // timeout for read-only ledger calls
	ReceiptTimeout      time.Duration // max wait for a transaction receipt
	ReceiptPollInterval time.Duration // receipt polling interval
	SubmitRetries       int           // bounded retries for transport failures on submit

	// Subscription engine
	ScanInterval    time.Duration // block scan interval
	DeliveryTimeout time.Duration // per-callback delivery timeout
	DeliveryRetries int           // retry budget per delivery before dropping

	// Redis (optional). Empty RedisAddr disables persistence; the
	// subscription registry then lives in memory only.
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries (grows exponentially)
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
}

// fileVals holds values loaded from FEDGATE_CONFIG_FILE. Environment
// variables always win; the file only fills gaps.
var fileVals map[string]string

func Load() *Config {
	fileVals = loadFile(os.Getenv("FEDGATE_CONFIG_FILE"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("FEDGATE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("FEDGATE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("FEDGATE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("FEDGATE_PRETTY_LOG", true),

		// Identity
		PrivateKey: requireEnv("FEDGATE_PRIVATE_KEY"),
		DomainRole: getenv("FEDGATE_DOMAIN_ROLE", "consumer"),

		// Ledger
		LedgerURL:           getenv("FEDGATE_LEDGER_URL", ""),
		BlockInterval:       mustDuration("FEDGATE_BLOCK_INTERVAL", 150*time.Millisecond),
		ReadTimeout:         mustDuration("FEDGATE_READ_TIMEOUT", 3*time.Second),
		ReceiptTimeout:      mustDuration("FEDGATE_RECEIPT_TIMEOUT", 30*time.Second),
		ReceiptPollInterval: mustDuration("FEDGATE_RECEIPT_POLL_INTERVAL", 100*time.Millisecond),
		SubmitRetries:       getenvInt("FEDGATE_SUBMIT_RETRIES", 3),

		// Subscriptions
		ScanInterval:    mustDuration("FEDGATE_SCAN_INTERVAL", 1*time.Second),
		DeliveryTimeout: mustDuration("FEDGATE_DELIVERY_TIMEOUT", 5*time.Second),
		DeliveryRetries: getenvInt("FEDGATE_DELIVERY_RETRIES", 2),

		// Redis settings
		RedisAddr:           getenv("FEDGATE_REDIS_ADDR", ""),
		RedisUser:           getenv("FEDGATE_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("FEDGATE_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("FEDGATE_REDIS_DB", 0),
		RedisDT:             mustDuration("FEDGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("FEDGATE_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("FEDGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("FEDGATE_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("FEDGATE_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("FEDGATE_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("FEDGATE_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("FEDGATE_REDIS_PING_TIMEOUT", 5*time.Second),
	}

	if cfg.DomainRole != "consumer" && cfg.DomainRole != "provider" {
		panic(fmt.Sprintf("❌ FATAL: FEDGATE_DOMAIN_ROLE must be \"consumer\" or \"provider\", got %q", cfg.DomainRole))
	}

	return cfg
}

// loadFile reads a flat YAML map of FEDGATE_* keys. Missing file with an
// empty path is fine; a named file that cannot be read is fatal.
func loadFile(path string) map[string]string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: cannot read config file %s: %v", path, err))
	}
	vals := make(map[string]string)
	if err := yaml.Unmarshal(data, &vals); err != nil {
		panic(fmt.Sprintf("❌ FATAL: cannot parse config file %s: %v", path, err))
	}
	return vals
}

// helpers
func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileVals[key]
}

func getenv(key, def string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := lookup(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid duration value for %s: %s", key, v))
	}
	return d
}

func mustBool(key string, def bool) bool {
	v := lookup(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid boolean value for %s: %s", key, v))
	}
	return b
}
