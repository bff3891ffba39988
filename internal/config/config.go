package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries all service settings resolved from the environment.
type Config struct {
	Port            string
	DBDSN           string
	AMQPURL         string
	AMQPExchange    string
	JWTSecret       string
	AuthStrict      bool
	RoomHistoryCap  int
	ArchiveCap      int
	EventsPerSecond int
}

// Load reads .env (if present) and resolves the configuration with defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file loaded, relying on process environment")
	}

	return Config{
		Port:            getEnv("PORT", "8083"),
		DBDSN:           getEnv("DB_DSN", ""),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "presence_events"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AuthStrict:      getEnvBool("AUTH_STRICT", false),
		RoomHistoryCap:  getEnvInt("ROOM_HISTORY_CAP", 2000),
		ArchiveCap:      getEnvInt("ARCHIVE_CAP", 2000),
		EventsPerSecond: getEnvInt("EVENTS_PER_SECOND", 20),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logrus.Warnf("invalid value for %s: %q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		logrus.Warnf("invalid value for %s: %q, using default %v", key, val, fallback)
		return fallback
	}
	return b
}
