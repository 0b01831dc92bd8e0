// Package config loads the gateway configuration from flags, environment
// (GATEWAY_ prefix) and an optional config file through viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/next-trace/scg-rpc-proxy/codec"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/correlation"
	"github.com/next-trace/scg-rpc-proxy/operations"
)

// EnvPrefix prefixes every environment variable, e.g. GATEWAY_BROKER_URL.
const EnvPrefix = "GATEWAY"

// Keys shared by flags, environment and config file.
const (
	KeyConfig         = "config"
	KeyBroker         = "broker"
	KeyBrokerURL      = "broker-url"
	KeyKafkaBrokers   = "kafka-brokers"
	KeyClientName     = "client-name"
	KeyConnectTimeout = "connect-timeout"
	KeyDefaultTimeout = "default-timeout"
	KeyMaxInFlight    = "max-in-flight"
	KeyCodec          = "codec"
	KeyIDFormat       = "id-format"
	KeyReplyTopic     = "reply-topic"
	KeyDestinations   = "destinations"
	KeyDestination    = "destination"
	KeyLifecycle      = "lifecycle"
	KeyEmitTimeout    = "emit-timeout"
	KeyMetricsListen  = "metrics-listen"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
)

// Brokers understood by bootstrap.
const (
	BrokerMemory   = "memory"
	BrokerNATS     = "nats"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

// Config is the resolved gateway configuration.
type Config struct {
	Broker         string
	BrokerURL      string
	KafkaBrokers   []string
	ClientName     string
	ConnectTimeout time.Duration
	DefaultTimeout time.Duration
	MaxInFlight    int
	Codec          string
	IDFormat       string
	// ReplyTopic names the reply queue/subject/topic; empty lets the adapter generate one.
	ReplyTopic string
	// Destinations maps a logical destination to its physical queue name.
	Destinations  map[string]string
	Lifecycle     bool
	EmitTimeout   time.Duration
	MetricsListen string
	LogLevel      string
	LogFormat     string
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBroker, BrokerMemory)
	v.SetDefault(KeyClientName, "scg-gateway")
	v.SetDefault(KeyConnectTimeout, 5*time.Second)
	v.SetDefault(KeyDefaultTimeout, 30*time.Second)
	v.SetDefault(KeyMaxInFlight, correlation.DefaultMaxInFlight)
	v.SetDefault(KeyCodec, codec.NameNest)
	v.SetDefault(KeyIDFormat, correlation.IDFormatUUID)
	v.SetDefault(KeyLifecycle, false)
	v.SetDefault(KeyEmitTimeout, time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	return v
}

// RegisterFlags declares the configuration flags on fs and binds them to v.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String(KeyConfig, "", "path to a YAML/JSON/TOML config file")
	fs.String(KeyBroker, v.GetString(KeyBroker), "broker binding: memory, nats, rabbitmq or kafka")
	fs.String(KeyBrokerURL, "", "broker connection URL (nats://, amqp://)")
	fs.StringSlice(KeyKafkaBrokers, nil, "kafka seed brokers (host:port, comma separated)")
	fs.String(KeyClientName, v.GetString(KeyClientName), "connection name reported to the broker")
	fs.Duration(KeyConnectTimeout, v.GetDuration(KeyConnectTimeout), "broker dial timeout")
	fs.Duration(KeyDefaultTimeout, v.GetDuration(KeyDefaultTimeout), "per-call reply timeout")
	fs.Int(KeyMaxInFlight, v.GetInt(KeyMaxInFlight), "max pending calls per destination (0 = unlimited)")
	fs.String(KeyCodec, v.GetString(KeyCodec), "wire envelope: nest or json")
	fs.String(KeyIDFormat, v.GetString(KeyIDFormat), "correlation id format: uuid or xid")
	fs.String(KeyReplyTopic, "", "reply queue/subject/topic (generated when empty)")
	fs.StringToString(KeyDestination, nil, "logical=physical destination overrides, e.g. users=usersQueue")
	fs.Bool(KeyLifecycle, v.GetBool(KeyLifecycle), "emit lifecycle events to the order processor")
	fs.Duration(KeyEmitTimeout, v.GetDuration(KeyEmitTimeout), "lifecycle emit timeout")
	fs.String(KeyMetricsListen, "", "address serving /metrics (empty disables)")
	fs.String(KeyLogLevel, v.GetString(KeyLogLevel), "log level: debug, info, warn, error")
	fs.String(KeyLogFormat, v.GetString(KeyLogFormat), "log format: text or json")

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})

	return errors.Join(errs...)
}

// Load reads the optional config file named by the "config" key and resolves the configuration.
func Load(v *viper.Viper) (Config, error) {
	if path := strings.TrimSpace(v.GetString(KeyConfig)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, errors.Join(berr.ErrInvalidConfig, err))
		}
	}

	cfg := Config{
		Broker:         strings.ToLower(strings.TrimSpace(v.GetString(KeyBroker))),
		BrokerURL:      strings.TrimSpace(v.GetString(KeyBrokerURL)),
		KafkaBrokers:   splitList(v.GetStringSlice(KeyKafkaBrokers)),
		ClientName:     strings.TrimSpace(v.GetString(KeyClientName)),
		ConnectTimeout: v.GetDuration(KeyConnectTimeout),
		DefaultTimeout: v.GetDuration(KeyDefaultTimeout),
		MaxInFlight:    v.GetInt(KeyMaxInFlight),
		Codec:          strings.ToLower(strings.TrimSpace(v.GetString(KeyCodec))),
		IDFormat:       strings.ToLower(strings.TrimSpace(v.GetString(KeyIDFormat))),
		ReplyTopic:     strings.TrimSpace(v.GetString(KeyReplyTopic)),
		Destinations:   destinations(v),
		Lifecycle:      v.GetBool(KeyLifecycle),
		EmitTimeout:    v.GetDuration(KeyEmitTimeout),
		MetricsListen:  strings.TrimSpace(v.GetString(KeyMetricsListen)),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// destinations merges file/env entries (destinations.<logical>) with the
// --destination flag, the flag winning.
func destinations(v *viper.Viper) map[string]string {
	out := make(map[string]string)

	for k, val := range v.GetStringMapString(KeyDestinations) {
		out[strings.ToLower(k)] = strings.TrimSpace(val)
	}

	for _, d := range operations.Destinations() {
		if val := strings.TrimSpace(v.GetString(KeyDestinations + "." + d.String())); val != "" {
			out[d.String()] = val
		}
	}

	for k, val := range v.GetStringMapString(KeyDestination) {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(val)
	}

	return out
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}

	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Broker {
	case BrokerMemory:
	case BrokerNATS, BrokerRabbitMQ:
		if c.BrokerURL == "" {
			errs = append(errs, fmt.Errorf("%s requires %s", c.Broker, KeyBrokerURL))
		}
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, fmt.Errorf("kafka requires %s", KeyKafkaBrokers))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown broker %q", c.Broker))
	}

	if c.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyDefaultTimeout))
	}

	if c.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMaxInFlight))
	}

	if c.EmitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyEmitTimeout))
	}

	if _, err := codec.ByName(c.Codec); err != nil {
		errs = append(errs, err)
	}

	if _, err := correlation.GeneratorByName(c.IDFormat); err != nil {
		errs = append(errs, err)
	}

	known := operations.Destinations()
	for _, logical := range sortedKeys(c.Destinations) {
		if !slices.Contains(known, rpc.Destination(logical)) {
			errs = append(errs, fmt.Errorf("unknown destination %q", logical))
		} else if c.Destinations[logical] == "" {
			errs = append(errs, fmt.Errorf("destination %q has an empty name", logical))
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown %s %q", KeyLogLevel, c.LogLevel))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown %s %q", KeyLogFormat, c.LogFormat))
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("config: %w", errors.Join(append([]error{berr.ErrInvalidConfig}, errs...)...))
}

// DestinationNames converts the destination overrides for proxy.WithDestinationNames.
func (c Config) DestinationNames() map[rpc.Destination]string {
	out := make(map[rpc.Destination]string, len(c.Destinations))
	for k, v := range c.Destinations {
		out[rpc.Destination(k)] = v
	}

	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
