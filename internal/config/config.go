package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr         string
	MySQLDSN         string
	RedisAddr        string
	InventoryBaseURL string
	KafkaBrokers     []string
	KafkaTopic       string
	ServiceName      string

	InventoryTimeout  time.Duration
	AdjustTimeout     time.Duration
	GuardMaxAttempts  int
	GuardBaseBackoff  time.Duration
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":3000"),
		MySQLDSN:         getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/orders?parseTime=true"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		InventoryBaseURL: getenv("INVENTORY_BASE_URL", "http://localhost:8090"),
		KafkaBrokers:     splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       getenv("KAFKA_TOPIC", "order-events"),
		ServiceName:      getenv("SERVICE_NAME", "order-ledger"),

		InventoryTimeout:  getduration("INVENTORY_TIMEOUT", 3*time.Second),
		AdjustTimeout:     getduration("ADJUST_TIMEOUT", 10*time.Second),
		GuardMaxAttempts:  getint("GUARD_MAX_ATTEMPTS", 4),
		GuardBaseBackoff:  getduration("GUARD_BASE_BACKOFF", 200*time.Millisecond),
		ReconcileInterval: getduration("RECONCILE_INTERVAL", 30*time.Second),
		ReconcileGrace:    getduration("RECONCILE_GRACE", 30*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
