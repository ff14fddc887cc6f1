package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "SERVICEMIRROR_"

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies SERVICEMIRROR_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = splitList(v)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("PUBSUB_SYSTEM", &cfg.PubSubSystem)
	list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	str("KAFKA_CONSUMER_GROUP", &cfg.KafkaConsumerGroup)
	str("RABBITMQ_URL", &cfg.RabbitMQURL)
	str("NATS_URL", &cfg.NATSURL)
	str("HTTP_SERVER_ADDRESS", &cfg.HTTPServerAddress)
	str("HTTP_PUBLISHER_URL", &cfg.HTTPPublisherURL)
	str("AWS_REGION", &cfg.AWSRegion)
	str("AWS_ACCOUNT_ID", &cfg.AWSAccountID)
	str("AWS_ACCESS_KEY_ID", &cfg.AWSAccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &cfg.AWSSecretAccessKey)
	str("AWS_ENDPOINT", &cfg.AWSEndpoint)
	str("SERVICE_TOPIC", &cfg.ServiceTopic)
	str("COMMENT_TOPIC", &cfg.CommentTopic)
	str("SERVICE_REQUEST_TOPIC", &cfg.ServiceRequestTopic)
	dur("CORRELATION_TIMEOUT", &cfg.CorrelationTimeout)
	dur("CORRELATION_RETENTION", &cfg.CorrelationRetention)

	flag("METRICS_ENABLED", &cfg.MetricsEnabled)
	num("METRICS_PORT", &cfg.MetricsPort)
	flag("ADMIN_ENABLED", &cfg.AdminEnabled)
	num("ADMIN_PORT", &cfg.AdminPort)
	list("ADMIN_CORS_ALLOWED_ORIGINS", &cfg.AdminCORSAllowedOrigins)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
