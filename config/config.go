package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Shopify     ShopifyConfig
	Metaobjects MetaobjectsConfig
	Cache       CacheConfig
	Store       StoreConfig
	Deal        DealConfig
	Messaging   MessagingConfig
	Inbound     InboundConfig
	Log         LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ShopifyConfig holds Admin API configuration. Shop may be empty at load;
// resolution then fails as unconfigured.
type ShopifyConfig struct {
	Shop              string  `mapstructure:"shop"`
	AccessToken       string  `mapstructure:"access_token"`
	APIVersion        string  `mapstructure:"api_version"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MetaobjectsConfig names the catalog metaobject type per controlled field
type MetaobjectsConfig struct {
	ColourType       string `mapstructure:"colour_type"`
	MaterialType     string `mapstructure:"material_type"`
	HardwareType     string `mapstructure:"hardware_type"`
	ConstructionType string `mapstructure:"construction_type"`
}

// CacheConfig holds metaobject cache configuration
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "memory", "redis" or "database"
	RedisURL string `mapstructure:"redis_url"`
}

// StoreConfig selects the session/event persistence backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory", "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// DealConfig holds session lifecycle settings
type DealConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	ExpirySweep time.Duration `mapstructure:"expiry_sweep"`
}

// MessagingConfig selects where CHECK messages are sent
type MessagingConfig struct {
	Provider string         `mapstructure:"provider"` // "none", "whatsapp" or "telegram"
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type WhatsAppConfig struct {
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	APIVersion    string `mapstructure:"api_version"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// InboundConfig protects the gateway webhook
type InboundConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/hotbags/")

	// HOTBAGS_SHOPIFY_ACCESS_TOKEN -> shopify.access_token
	v.SetEnvPrefix("HOTBAGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("shopify.shop", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.api_version", "2025-01")
	v.SetDefault("shopify.requests_per_second", 2)
	v.SetDefault("shopify.burst", 4)

	v.SetDefault("metaobjects.colour_type", "hermes_colour")
	v.SetDefault("metaobjects.material_type", "herm_s_material")
	v.SetDefault("metaobjects.hardware_type", "hermes_hardware")
	v.SetDefault("metaobjects.construction_type", "hermes_construction")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	v.SetDefault("deal.ttl", "15m")
	v.SetDefault("deal.expiry_sweep", "1m")

	v.SetDefault("messaging.provider", "none")
	v.SetDefault("messaging.whatsapp.phone_number_id", "")
	v.SetDefault("messaging.whatsapp.access_token", "")
	v.SetDefault("messaging.whatsapp.api_version", "v21.0")
	v.SetDefault("messaging.telegram.token", "")

	v.SetDefault("inbound.bearer_token", "")

	v.SetDefault("log.debug", false)
}

// validate rejects inconsistent combinations
func validate(config *Config) error {
	switch config.Cache.Type {
	case "memory", "database":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'database', got: %s", config.Cache.Type)
	}

	switch config.Store.Driver {
	case "memory":
		if config.Cache.Type == "database" {
			return fmt.Errorf("cache type 'database' requires a sqlite or postgres store")
		}
	case "sqlite", "postgres":
		if config.Store.DSN == "" {
			return fmt.Errorf("store DSN is required when store driver is '%s'", config.Store.Driver)
		}
	default:
		return fmt.Errorf("store driver must be 'memory', 'sqlite' or 'postgres', got: %s", config.Store.Driver)
	}

	switch config.Messaging.Provider {
	case "none":
	case "whatsapp":
		if config.Messaging.WhatsApp.PhoneNumberID == "" || config.Messaging.WhatsApp.AccessToken == "" {
			return fmt.Errorf("WhatsApp phone number id and access token are required when messaging provider is 'whatsapp'")
		}
	case "telegram":
		if config.Messaging.Telegram.Token == "" {
			return fmt.Errorf("Telegram token is required when messaging provider is 'telegram'")
		}
	default:
		return fmt.Errorf("messaging provider must be 'none', 'whatsapp' or 'telegram', got: %s", config.Messaging.Provider)
	}

	if config.Deal.TTL <= 0 {
		return fmt.Errorf("deal TTL must be positive, got: %s", config.Deal.TTL)
	}

	return nil
}
