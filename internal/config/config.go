package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed into each component;
// nothing reads the environment after Load returns.
type Config struct {
	HTTPAddr    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	ReaderQRSecret  string
	ReaderStationID string
	QRWindow        time.Duration

	DoorHost       string
	DoorPort       int
	DoorDeviceName string
	DoorAPIKey     string
	DoorButtonName string
	DoorTimeout    time.Duration

	AssistantThreshold int

	Timezone string

	DailyCloseEnabled bool
	DailyCloseAt      string // local "HH:MM"
}

func Load() Config {
	// Mirror the original deployment: a .env next to the binary wins,
	// real environment variables override it.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":5000"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		ReaderQRSecret:  getenv("READER_QR_SECRET", ""),
		ReaderStationID: getenv("READER_STATION_ID", "lector-principal"),
		QRWindow:        getenvDuration("QR_WINDOW", 15*time.Second),

		DoorHost:       getenv("DOOR_HOST", ""),
		DoorPort:       getenvInt("DOOR_PORT", 6053),
		DoorDeviceName: getenv("DOOR_DEVICE_NAME", ""),
		DoorAPIKey:     getenv("DOOR_API_KEY", ""),
		DoorButtonName: getenv("DOOR_BUTTON_NAME", "abrir"),
		DoorTimeout:    getenvDuration("DOOR_TIMEOUT", 15*time.Second),

		AssistantThreshold: getenvInt("ASSISTANT_THRESHOLD", 2),

		Timezone: getenv("TIMEZONE", "America/Santiago"),

		DailyCloseEnabled: getenvBool("DAILY_CLOSE_ENABLED", true),
		DailyCloseAt:      getenv("DAILY_CLOSE_AT", "23:59"),
	}
}

// Location resolves the configured timezone, falling back to UTC when
// the zone database does not know it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
