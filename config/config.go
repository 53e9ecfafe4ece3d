package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"food-whatsapp/models"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"

	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"

	ProofStoreFS = "fs"
	ProofStoreS3 = "s3"
)

type Config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	LogDev      bool   `env:"LOG_DEV" envDefault:"false"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	// comma separated; "*" allows every origin
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	DB        DBConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Transport TransportConfig
	Shop      ShopConfig
	Flow      FlowConfig
	Proofs    ProofConfig
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Database string `env:"DB_NAME" envDefault:"food"`
}

// DSN builds the pgx connection string.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	return u.String()
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DB" envDefault:"food"`
}

// RedisConfig enables the durable session store when Addr is set.
type RedisConfig struct {
	Addr       string        `env:"REDIS_ADDR"`
	Password   string        `env:"REDIS_PASSWORD"`
	DB         int           `env:"REDIS_DB" envDefault:"0"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"72h"`
}

type TransportConfig struct {
	Kind               string `env:"TRANSPORT" envDefault:"whatsapp"`
	TelegramToken      string `env:"TOKEN"`
	WhatsAppToken      string `env:"WHATSAPP_TOKEN"`
	WhatsAppPhoneID    string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppVerify     string `env:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAPIVersion string `env:"WHATSAPP_API_VERSION" envDefault:"v20.0"`
	WhatsAppBaseURL    string `env:"WHATSAPP_BASE_URL" envDefault:"https://graph.facebook.com"`
}

type ShopConfig struct {
	Name        string  `env:"SHOP_NAME" envDefault:"Our Kitchen"`
	Lat         float64 `env:"SHOP_LAT"`
	Lon         float64 `env:"SHOP_LON"`
	Phone       string  `env:"SHOP_PHONE"`
	Currency    string  `env:"CURRENCY" envDefault:"₹"`
	UPIID       string  `env:"UPI_ID"`
	DefaultLang string  `env:"DEFAULT_LANG" envDefault:"en"`
	// seed tiers, "maxKm:fee" pairs
	DeliveryRates string `env:"DELIVERY_RATES" envDefault:"5:20,10:40"`
}

// Location returns the shop coordinates, or nil when they are not configured.
func (s ShopConfig) Location() *models.GeoPoint {
	if s.Lat == 0 && s.Lon == 0 {
		return nil
	}
	return &models.GeoPoint{Lat: s.Lat, Lon: s.Lon}
}

// FlowConfig selects the bot variant.
type FlowConfig struct {
	PaymentProof  bool `env:"FLOW_PAYMENT_PROOF" envDefault:"false"`
	AdminApproval bool `env:"FLOW_ADMIN_APPROVAL" envDefault:"true"`
}

type ProofConfig struct {
	Kind       string `env:"PROOF_STORE" envDefault:"fs"`
	Dir        string `env:"PROOF_DIR" envDefault:"./data/proofs"`
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION" envDefault:"ap-south-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Prefix   string `env:"S3_PREFIX" envDefault:"proofs/"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.Transport.Kind {
	case TransportTelegram:
		if c.Transport.TelegramToken == "" {
			return fmt.Errorf("TOKEN not set")
		}
	case TransportWhatsApp:
		if c.Transport.WhatsAppToken == "" || c.Transport.WhatsAppPhoneID == "" {
			return fmt.Errorf("WHATSAPP_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be set")
		}
	default:
		return fmt.Errorf("unknown TRANSPORT %q", c.Transport.Kind)
	}
	switch c.Proofs.Kind {
	case ProofStoreFS:
	case ProofStoreS3:
		if c.Proofs.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET not set")
		}
	default:
		return fmt.Errorf("unknown PROOF_STORE %q", c.Proofs.Kind)
	}
	if _, err := ParseRates(c.Shop.DeliveryRates); err != nil {
		return err
	}
	return nil
}

// ParseRates parses "5:20,10:40" into tiers sorted by distance.
func ParseRates(s string) ([]models.DeliveryRate, error) {
	var rates []models.DeliveryRate
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid delivery rate %q, want maxKm:fee", part)
		}
		km, err := strconv.ParseFloat(strings.TrimSpace(kv[0]), 64)
		if err != nil || km < 0 {
			return nil, fmt.Errorf("invalid delivery rate distance %q", kv[0])
		}
		fee, err := strconv.ParseInt(strings.TrimSpace(kv[1]), 10, 64)
		if err != nil || fee < 0 {
			return nil, fmt.Errorf("invalid delivery rate fee %q", kv[1])
		}
		rates = append(rates, models.DeliveryRate{MaxKm: km, Fee: fee})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].MaxKm < rates[j].MaxKm })
	return rates, nil
}
