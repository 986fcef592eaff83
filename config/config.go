package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of marketlinkd's YAML configuration file.
type Config struct {
	SoupBinServer   SoupBinServerConfig   `yaml:"soupbin_server"`
	MoldTransmitter MoldTransmitterConfig `yaml:"mold_transmitter"`
	MoldReceiver    MoldReceiverConfig    `yaml:"mold_receiver"`
	Admin           AdminConfig           `yaml:"admin"`
	Logs            LogsConfig            `yaml:"logs"`
}

// SoupBinClientConfig configures a SoupBinTCP client connection.
type SoupBinClientConfig struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SessionID       string        `yaml:"session_id"`
	SequenceNumber  uint64        `yaml:"sequence_number"`
	ServerTimeout   time.Duration `yaml:"server_timeout"`
	ConnectDeadline time.Duration `yaml:"connect_deadline"`
	Address         string        `yaml:"address"`
}

// SoupBinServerConfig configures the SoupBinTCP login server.
type SoupBinServerConfig struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	BindAddress string `yaml:"bind_address"`
}

// MoldReceiverConfig configures a MoldUDP64 receiver.
type MoldReceiverConfig struct {
	SessionID          string        `yaml:"session_id"`
	SequenceNumber     uint64        `yaml:"sequence_number"`
	MulticastAddress   string        `yaml:"multicast_address"`
	MulticastInterface string        `yaml:"multicast_interface"`
	RequestAddrs       []string      `yaml:"request_addrs"`
	AutoRerequest      bool          `yaml:"auto_rerequest"`
	ServerTimeout      time.Duration `yaml:"server_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// MoldTransmitterConfig configures a MoldUDP64 transmitter.
type MoldTransmitterConfig struct {
	SessionID      string `yaml:"session_id"`
	SequenceNumber uint64 `yaml:"sequence_number"`
	MulticastAddr  string `yaml:"multicast_address"`
	RequestBind    string `yaml:"request_bind_address"`
}

// AdminConfig configures the JSON status/admin HTTP API.
type AdminConfig struct {
	Port int `yaml:"port"`
}

// LogsConfig configures logrus output.
type LogsConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Load reads and parses the YAML config file at path, applying defaults for
// any field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SoupBinServer: SoupBinServerConfig{
			BindAddress: "0.0.0.0:18000",
		},
		MoldReceiver: MoldReceiverConfig{
			AutoRerequest: true,
			ServerTimeout: 15 * time.Second,
			BufferSize:    4096,
		},
		MoldTransmitter: MoldTransmitterConfig{
			RequestBind: "0.0.0.0:18001",
		},
		Admin: AdminConfig{
			Port: 8080,
		},
		Logs: LogsConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
