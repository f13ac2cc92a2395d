package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// Config is the top-level configuration for one peering session
// (spec.md §4.6 names exactly these collaborator inputs: local/remote
// IP and ASN, router ID, session attribute flags, the seven timer
// initial values, and the initial capability list).
type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Peer     PeerConfig     `koanf:"peer"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// PeerConfig describes the single BGP session this speaker instance
// maintains, plus the session attribute flags that govern FSM
// behavior (spec.md §4.4, §4.6).
type PeerConfig struct {
	ListenAddr    string `koanf:"listen_addr"`
	LocalIP       string `koanf:"local_ip"`
	RemoteIP      string `koanf:"remote_ip"`
	LocalASN      uint16 `koanf:"local_asn"`
	RemoteASN     uint16 `koanf:"remote_asn"`
	LocalRouterID string `koanf:"local_router_id"`

	Passive                     bool `koanf:"passive"`
	AllowAutomaticStart         bool `koanf:"allow_automatic_start"`
	AllowAutomaticStop          bool `koanf:"allow_automatic_stop"`
	DampPeerOscillations        bool `koanf:"damp_peer_oscillations"`
	DelayOpen                   bool `koanf:"delay_open"`
	SendNotificationWithoutOpen bool `koanf:"send_notification_without_open"`

	Timers       TimersConfig       `koanf:"timers"`
	Capabilities []CapabilityConfig `koanf:"capabilities"`
}

// TimersConfig carries the seven timer initial values, in seconds
// (spec.md §4.3). A zero value disables that timer.
type TimersConfig struct {
	ConnectRetrySeconds                  int `koanf:"connect_retry_seconds"`
	HoldSeconds                          int `koanf:"hold_seconds"`
	KeepaliveSeconds                     int `koanf:"keepalive_seconds"`
	MinASOriginationIntervalSeconds      int `koanf:"min_as_origination_interval_seconds"`
	MinRouteAdvertisementIntervalSeconds int `koanf:"min_route_advertisement_interval_seconds"`
	DelayOpenSeconds                     int `koanf:"delay_open_seconds"`
	IdleHoldSeconds                      int `koanf:"idle_hold_seconds"`
}

// CapabilityConfig is one entry of the initial capability list
// advertised in this speaker's OPEN message.
type CapabilityConfig struct {
	Code uint8  `koanf:"code"`
	AFI  uint16 `koanf:"afi"`
	SAFI uint8  `koanf:"safi"`
}

// KafkaConfig configures the telemetry producer (internal/telemetry),
// not a consumer group — this speaker only ever produces transition
// and NOTIFICATION events.
type KafkaConfig struct {
	Brokers        []string   `koanf:"brokers"`
	ClientID       string     `koanf:"client_id"`
	Topic          string     `koanf:"topic"`
	TLS            TLSConfig  `koanf:"tls"`
	SASL           SASLConfig `koanf:"sasl"`
	CompressFrames bool       `koanf:"compress_frames"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

// PostgresConfig configures the RIB sink (internal/rib), the out-of-
// scope route-table collaborator spec.md §1/§4.6 names.
type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML file first.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: BGP_SPEAKER_PEER__LOCAL_ASN → peer.local_asn
	if err := k.Load(env.Provider("BGP_SPEAKER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BGP_SPEAKER_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "bgp-speaker-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Peer: PeerConfig{
			ListenAddr: ":179",
			Timers: TimersConfig{
				ConnectRetrySeconds: 120,
				HoldSeconds:         90,
				KeepaliveSeconds:    30,
			},
		},
		Kafka: KafkaConfig{
			ClientID:       "bgp-speaker",
			Topic:          "bgp-speaker.events",
			CompressFrames: true,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			MinConns: 1,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Peer.LocalIP == "" {
		return fmt.Errorf("config: peer.local_ip is required")
	}
	if c.Peer.RemoteIP == "" && !c.Peer.Passive {
		return fmt.Errorf("config: peer.remote_ip is required unless peer.passive is set")
	}
	if c.Peer.LocalASN == 0 {
		return fmt.Errorf("config: peer.local_asn is required")
	}
	if c.Peer.RemoteASN == 0 {
		return fmt.Errorf("config: peer.remote_asn is required")
	}
	if c.Peer.LocalRouterID == "" {
		return fmt.Errorf("config: peer.local_router_id is required")
	}
	if c.Peer.Timers.HoldSeconds != 0 && c.Peer.Timers.HoldSeconds < 3 {
		return fmt.Errorf("config: peer.timers.hold_seconds must be 0 or >= 3 (got %d)", c.Peer.Timers.HoldSeconds)
	}
	if c.Peer.Timers.ConnectRetrySeconds <= 0 {
		return fmt.Errorf("config: peer.timers.connect_retry_seconds must be > 0 (got %d)", c.Peer.Timers.ConnectRetrySeconds)
	}
	if c.Postgres.DSN != "" {
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
		}
		if c.Postgres.MinConns < 0 {
			return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required when kafka.brokers is set")
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	return nil
}

// BuildTLSConfig creates a *tls.Config from the Kafka TLS settings. Returns nil if TLS is disabled.
func (k *KafkaConfig) BuildTLSConfig() (*tls.Config, error) {
	if !k.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if k.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(k.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if k.TLS.CertFile != "" && k.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(k.TLS.CertFile, k.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the Kafka SASL settings. Returns nil if SASL is disabled.
func (k *KafkaConfig) BuildSASLMechanism() sasl.Mechanism {
	if !k.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(k.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: k.SASL.Username, Pass: k.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}
