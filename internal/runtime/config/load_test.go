package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultServiceTopic, cfg.ServiceTopic)
	assert.Equal(t, DefaultCommentTopic, cfg.CommentTopic)
	assert.Equal(t, DefaultCorrelationTimeout, cfg.CorrelationTimeout)
}

func TestLoadReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servicemirror.yaml")
	body := []byte(`
pubsub_system: kafka
kafka_brokers:
  - kafka-1:9092
  - kafka-2:9092
kafka_consumer_group: servicemirror
service_topic: marketplace-services
correlation_timeout: 2s
metrics_enabled: true
metrics_port: 9102
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.PubSubSystem)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "servicemirror", cfg.KafkaConsumerGroup)
	assert.Equal(t, "marketplace-services", cfg.ServiceTopic)
	assert.Equal(t, DefaultCommentTopic, cfg.CommentTopic)
	assert.Equal(t, 2*time.Second, cfg.CorrelationTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 9102, cfg.MetricsPort)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servicemirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pubsub_system: rabbitmq\nrabbitmq_url: amqp://file\n"), 0o600))

	t.Setenv(EnvPrefix+"RABBITMQ_URL", "amqp://env")
	t.Setenv(EnvPrefix+"CORRELATION_RETENTION", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rabbitmq", cfg.PubSubSystem)
	assert.Equal(t, "amqp://env", cfg.RabbitMQURL)
	assert.Equal(t, 90*time.Second, cfg.CorrelationRetention)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka_brokers: [unterminated"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnvCollectsAllErrors(t *testing.T) {
	env := map[string]string{
		EnvPrefix + "CORRELATION_TIMEOUT": "soon",
		EnvPrefix + "METRICS_ENABLED":     "maybe",
		EnvPrefix + "METRICS_PORT":        "ninety",
		EnvPrefix + "KAFKA_BROKERS":       " a:1 , ,b:2",
		EnvPrefix + "ADMIN_ENABLED":       "true",
		EnvPrefix + "ADMIN_PORT":          "8181",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	err := applyEnv(&cfg, lookup)

	require.Error(t, err)
	assert.ErrorContains(t, err, "CORRELATION_TIMEOUT")
	assert.ErrorContains(t, err, "METRICS_ENABLED")
	assert.ErrorContains(t, err, "METRICS_PORT")
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AdminEnabled)
	assert.Equal(t, 8181, cfg.AdminPort)
	assert.Equal(t, DefaultCorrelationTimeout, cfg.CorrelationTimeout)
}
