package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-rpc-proxy/config"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/operations"
)

func load(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	v := config.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, config.RegisterFlags(v, fs))
	require.NoError(t, fs.Parse(args))

	return config.Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, config.BrokerMemory, cfg.Broker)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 1024, cfg.MaxInFlight)
	assert.Equal(t, "nest", cfg.Codec)
	assert.Equal(t, "uuid", cfg.IDFormat)
	assert.Equal(t, time.Second, cfg.EmitTimeout)
	assert.False(t, cfg.Lifecycle)
	assert.Empty(t, cfg.Destinations)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("GATEWAY_BROKER", "rabbitmq")
	t.Setenv("GATEWAY_BROKER_URL", "amqp://env")
	t.Setenv("GATEWAY_DEFAULT_TIMEOUT", "5s")
	t.Setenv("GATEWAY_DESTINATIONS_MANAGER_COGNITO", "cognitoQueue")

	cfg, err := load(t,
		"--broker-url", "amqp://flag",
		"--destination", "users=usersQueue",
		"--id-format", "xid",
	)
	require.NoError(t, err)

	assert.Equal(t, config.BrokerRabbitMQ, cfg.Broker)
	assert.Equal(t, "amqp://flag", cfg.BrokerURL)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "xid", cfg.IDFormat)
	assert.Equal(t, map[string]string{
		"users":           "usersQueue",
		"manager-cognito": "cognitoQueue",
	}, cfg.Destinations)
	assert.Equal(t, "usersQueue", cfg.DestinationNames()[operations.UsersQueue])
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker: kafka
kafka-brokers:
  - k1:9092
  - k2:9092
codec: json
lifecycle: true
destinations:
  organization: organizationQueue
`), 0o600))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, config.BrokerKafka, cfg.Broker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "json", cfg.Codec)
	assert.True(t, cfg.Lifecycle)
	assert.Equal(t, "organizationQueue", cfg.Destinations["organization"])
}

func TestLoad_KafkaBrokersFromEnvList(t *testing.T) {
	t.Setenv("GATEWAY_BROKER", "kafka")
	t.Setenv("GATEWAY_KAFKA_BROKERS", "a:1,b:2")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, berr.ErrInvalidConfig)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := config.Config{
		Broker:         "nats",
		DefaultTimeout: 0,
		MaxInFlight:    -1,
		Codec:          "xml",
		IDFormat:       "ulid",
		Destinations:   map[string]string{"billing": "billingQueue"},
		EmitTimeout:    time.Second,
		LogLevel:       "trace",
		LogFormat:      "text",
	}

	err := cfg.Validate()
	require.ErrorIs(t, err, berr.ErrInvalidConfig)

	msg := err.Error()
	for _, want := range []string{"broker-url", "default-timeout", "max-in-flight", "xml", "ulid", "billing", "trace"} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_UnknownBroker(t *testing.T) {
	_, err := load(t, "--broker", "zeromq")
	require.ErrorIs(t, err, berr.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "zeromq")
}
