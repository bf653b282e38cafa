package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	EventsNone  = "none"
	EventsNats  = "nats"
	EventsKafka = "kafka"
)

const devJwtSecret = "dev-only-secret-change-me"

// Config is the process configuration, read once at startup.
type Config struct {
	Env      string
	LogLevel string

	HTTPAddr string
	GRPCAddr string
	WSPath   string

	JWTSecret []byte
	JWTAlg    string
	JWTTTL    time.Duration

	StoreDriver string
	DatabaseURL string
	DBMigrate   bool
	MongoURI    string
	MongoDB     string

	RedisURL    string
	PresenceTTL time.Duration

	EventsDriver      string
	NatsURL           string
	NatsSubjectPrefix string
	KafkaBrokers      []string
	KafkaTopic        string

	WSSendQueue       int
	WSPingInterval    time.Duration
	WSWriteWait       time.Duration
	WSMaxMessageBytes int64
	// WSEventRate is inbound events per second per connection; negative disables.
	WSEventRate  int
	WSEventBurst int

	CORSOrigins []string
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8080",
	"http://127.0.0.1:5173",
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup; tests pass a map-backed lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		Env:               strings.ToLower(r.str("APP_ENV", EnvDevelopment)),
		HTTPAddr:          r.str("HTTP_ADDR", ":8080"),
		GRPCAddr:          r.str("GRPC_ADDR", ":50052"),
		WSPath:            r.str("WS_PATH", "/ws"),
		JWTAlg:            r.str("JWT_ALG", "HS256"),
		JWTTTL:            r.duration("JWT_TTL", 2*time.Hour),
		StoreDriver:       strings.ToLower(r.str("STORE_DRIVER", StoreMemory)),
		DatabaseURL:       r.str("DATABASE_URL", ""),
		DBMigrate:         r.boolean("DB_MIGRATE", true),
		MongoURI:          r.str("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           r.str("MONGO_DB", "socialchat"),
		RedisURL:          r.str("REDIS_URL", ""),
		PresenceTTL:       r.duration("PRESENCE_TTL", 2*time.Minute),
		EventsDriver:      strings.ToLower(r.str("EVENTS_DRIVER", EventsNone)),
		NatsURL:           r.str("NATS_URL", "nats://127.0.0.1:4222"),
		NatsSubjectPrefix: r.str("NATS_SUBJECT_PREFIX", "chat"),
		KafkaBrokers:      r.list("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
		KafkaTopic:        r.str("KAFKA_TOPIC", "chat.events"),
		WSSendQueue:       r.integer("WS_SEND_QUEUE", 256),
		WSPingInterval:    r.duration("WS_PING_INTERVAL", 25*time.Second),
		WSWriteWait:       r.duration("WS_WRITE_WAIT", 10*time.Second),
		WSMaxMessageBytes: int64(r.integer("WS_MAX_MESSAGE_BYTES", 65536)),
		WSEventRate:       r.integer("WS_EVENT_RATE", 30),
		WSEventBurst:      r.integer("WS_EVENT_BURST", 60),
		CORSOrigins:       r.list("CORS_ORIGINS", defaultOrigins),
	}

	defLevel := "info"
	if cfg.Env == EnvDevelopment {
		defLevel = "debug"
	}
	cfg.LogLevel = r.str("LOG_LEVEL", defLevel)

	secret := r.str("JWT_ACCESS_SECRET", "")
	if secret == "" {
		if cfg.IsProduction() {
			r.fail("JWT_ACCESS_SECRET is required in production")
		}
		secret = devJwtSecret
	}
	cfg.JWTSecret = []byte(secret)

	switch cfg.StoreDriver {
	case StoreMemory, StoreMongo:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			r.fail("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		r.fail(fmt.Sprintf("STORE_DRIVER %q not supported", cfg.StoreDriver))
	}
	switch cfg.EventsDriver {
	case EventsNone, EventsNats, EventsKafka:
	default:
		r.fail(fmt.Sprintf("EVENTS_DRIVER %q not supported", cfg.EventsDriver))
	}
	if cfg.WSSendQueue <= 0 {
		r.fail("WS_SEND_QUEUE must be positive")
	}

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) fail(msg string) {
	if r.err == nil {
		r.err = errors.New("config: " + msg)
	}
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(fmt.Sprintf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Sprintf("%s: invalid bool %q", key, v))
		return def
	}
	return b
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Sprintf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) list(key string, def []string) []string {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
