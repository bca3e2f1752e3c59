package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	InstanceID             string `mapstructure:"instance_id"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	RateLimitPerMin        int    `mapstructure:"rate_limit_per_min"`
	RateLimitBurst         int    `mapstructure:"rate_limit_burst"`
}

func (a AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

func (a AppConfig) Development() bool { return a.Env == "development" || a.Env == "dev" }

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI              string `mapstructure:"uri"`
	DB               string `mapstructure:"db"`
	Collection       string `mapstructure:"collection"`
	OpTimeoutSeconds int    `mapstructure:"op_timeout_seconds"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	Channel  string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers            []string `mapstructure:"brokers"`
	TopicNotifications string   `mapstructure:"topic_notifications"`
	TopicDLQ           string   `mapstructure:"topic_dlq"`
	GroupID            string   `mapstructure:"group_id"`
}

type JWTConfig struct {
	Alg           string `mapstructure:"alg"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	HSSecret      string `mapstructure:"hs_secret"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type MutationConfig struct {
	MaxAttempts           int `mapstructure:"max_attempts"`
	BaseBackoffMs         int `mapstructure:"base_backoff_ms"`
	ReceiptDedupeWindowMs int `mapstructure:"receipt_dedupe_window_ms"`
}

type AdminContact struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type NotifyConfig struct {
	Mode           string         `mapstructure:"mode"`
	Emailer        string         `mapstructure:"emailer"`
	BrevoAPIKey    string         `mapstructure:"brevo_api_key"`
	SenderEmail    string         `mapstructure:"sender_email"`
	SenderName     string         `mapstructure:"sender_name"`
	MaxRetries     int            `mapstructure:"max_retries"`
	RetryBackoffMs int            `mapstructure:"retry_backoff_ms"`
	SkipOnline     bool           `mapstructure:"skip_online"`
	Admins         []AdminContact `mapstructure:"admins"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	WS       WSConfig       `mapstructure:"ws"`
	Mutation MutationConfig `mapstructure:"mutation"`
	Notify   NotifyConfig   `mapstructure:"notify"`

	// derived
	ShutdownTimeout     time.Duration `mapstructure:"-"`
	MongoOpTimeout      time.Duration `mapstructure:"-"`
	PingInterval        time.Duration `mapstructure:"-"`
	WriteDeadline       time.Duration `mapstructure:"-"`
	MutationBackoff     time.Duration `mapstructure:"-"`
	ReceiptDedupeWindow time.Duration `mapstructure:"-"`
	NotifyBackoff       time.Duration `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.instance_id", "")
	v.SetDefault("app.shutdown_timeout_seconds", 10)
	v.SetDefault("app.rate_limit_per_min", 120)
	v.SetDefault("app.rate_limit_burst", 20)

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "support")
	v.SetDefault("mongo.collection", "threads")
	v.SetDefault("mongo.op_timeout_seconds", 3)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "support")
	v.SetDefault("redis.channel", "support:fanout")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_notifications", "support.notifications")
	v.SetDefault("kafka.topic_dlq", "support.notifications.dlq")
	v.SetDefault("kafka.group_id", "support-notifier")

	v.SetDefault("jwt.alg", "HS256")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.hs_secret", "")

	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 65536)

	v.SetDefault("mutation.max_attempts", 3)
	v.SetDefault("mutation.base_backoff_ms", 50)
	v.SetDefault("mutation.receipt_dedupe_window_ms", 5000)

	v.SetDefault("notify.mode", "direct")
	v.SetDefault("notify.emailer", "log")
	v.SetDefault("notify.brevo_api_key", "")
	v.SetDefault("notify.sender_email", "support@example.com")
	v.SetDefault("notify.sender_name", "Support")
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.retry_backoff_ms", 500)
	v.SetDefault("notify.skip_online", false)
}

// Load reads path (optional) and environment overrides. Env keys use
// underscores for nesting: MONGO_URI overrides mongo.uri.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	// AutomaticEnv does not split list values
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}

	c.ShutdownTimeout = time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
	c.MongoOpTimeout = time.Duration(c.Mongo.OpTimeoutSeconds) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.MutationBackoff = time.Duration(c.Mutation.BaseBackoffMs) * time.Millisecond
	c.ReceiptDedupeWindow = time.Duration(c.Mutation.ReceiptDedupeWindowMs) * time.Millisecond
	c.NotifyBackoff = time.Duration(c.Notify.RetryBackoffMs) * time.Millisecond

	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func validate(c *Config) error {
	if c.App.Port <= 0 {
		return errors.New("app.port missing or invalid")
	}

	switch c.Store.Driver {
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.DB == "" {
			return errors.New("mongo.uri and mongo.db required for store.driver=mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid store.driver %q (use mongo or memory)", c.Store.Driver)
	}

	if c.Mutation.MaxAttempts < 1 {
		return errors.New("mutation.max_attempts must be at least 1")
	}

	switch c.Notify.Mode {
	case "direct", "off":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers required for notify.mode=kafka")
		}
		if c.Kafka.TopicNotifications == "" {
			return errors.New("kafka.topic_notifications missing")
		}
	default:
		return fmt.Errorf("invalid notify.mode %q (use direct, kafka or off)", c.Notify.Mode)
	}

	switch c.Notify.Emailer {
	case "log":
	case "brevo":
		if c.Notify.BrevoAPIKey == "" {
			return errors.New("notify.brevo_api_key required for notify.emailer=brevo")
		}
	default:
		return fmt.Errorf("invalid notify.emailer %q (use log or brevo)", c.Notify.Emailer)
	}

	switch strings.ToUpper(c.JWT.Alg) {
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	case "HS256":
		if c.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret required for HS256")
		}
	default:
		return errors.New("invalid jwt.alg (use RS256 or HS256)")
	}

	return nil
}
