package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
)

// Config holds all runtime configuration values. Each field
// corresponds to an environment variable. The types reflect how the
// values are used in the application: strings for identifiers and
// secrets, durations for TTLs.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign JWTs
	AccessTTL      time.Duration // access token time-to-live (default 15m)
	RefreshTTL     time.Duration // refresh token time-to-live (default 168h)
	OTPTTL         time.Duration // OTP validity window (default 10m)
	OTPMaxAttempts int           // wrong guesses before a code goes dead
	BcryptCost     int           // bcrypt cost for OTP code hashing
	RabbitURL      string        // AMQP URL for the OTP email queue (optional)
}

// CookieSecure reports whether auth cookies should carry the Secure
// attribute. Only production runs behind TLS.
func (c Config) CookieSecure() bool { return c.Env == "prod" || c.Env == "production" }

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),  // environment (dev/test/prod)
		Port:           must("APP_PORT"), // port to bind the HTTP server
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTL:      minutes("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTL:     24 * time.Hour * time.Duration(intDefault("REFRESH_TOKEN_TTL_DAYS", 7)),
		OTPTTL:         minutes("OTP_TTL_MIN", 10),
		OTPMaxAttempts: intDefault("OTP_MAX_ATTEMPTS", 5),
		BcryptCost:     intDefault("BCRYPT_COST", 10),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intDefault parses an integer env var, falling back to def when the
// variable is unset. A malformed value is fatal rather than silently
// ignored.
func intDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func minutes(key string, def int) time.Duration {
	return time.Duration(intDefault(key, def)) * time.Minute
}
