package config

import (
	"fmt"
	"time"

	"path/filepath"

	"github.com/BurntSushi/toml"
	uuid "github.com/satori/go.uuid"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Replica Replica
	Storage Storage
	TLS     *TLS
	Peers   map[string]string

	// dir is the absolute directory of the
	// config file, base of all relative paths.
	dir string
}

// Replica describes the local node of an lwwgraph
// setup: its name, where it accepts sync traffic,
// and how often it exchanges state with its peers.
type Replica struct {
	Name           string
	ListenSyncAddr string
	PrometheusAddr string
	SyncInterval   Duration
	SyncTimeout    Duration
}

// Storage configures where a replica persists
// its graph state between restarts. Path is used by
// the file and badger adapters, DSN and Key by the
// postgres adapter.
type Storage struct {
	Adapter    string
	Path       string
	DSN        string
	Key        string
	SyncWrites bool
}

// TLS holds the certificate locations used to
// secure replica-to-replica communication.
type TLS struct {
	CertLoc     string
	KeyLoc      string
	RootCertLoc string
}

// Duration wraps time.Duration so that it can be
// written as a string like "5s" in TOML files.
type Duration struct {
	time.Duration
}

// Defaults applied to values missing in config files.
const (
	DefaultSyncInterval = 5 * time.Second
	DefaultSyncTimeout  = 10 * time.Second
	DefaultAdapter      = "memory"
)

// Functions

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {

	var err error

	d.Duration, err = time.ParseDuration(string(text))

	return err
}

// MarshalText returns the string form of d.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig takes in the path to the main config
// file of lwwgraph in TOML syntax and places the values
// from the file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	// A replica without a configured name gets a random one.
	if conf.Replica.Name == "" {
		conf.Replica.Name = fmt.Sprintf("replica-%s", uuid.NewV4().String())
	}

	if conf.Replica.SyncInterval.Duration <= 0 {
		conf.Replica.SyncInterval.Duration = DefaultSyncInterval
	}

	if conf.Replica.SyncTimeout.Duration <= 0 {
		conf.Replica.SyncTimeout.Duration = DefaultSyncTimeout
	}

	if conf.Storage.Adapter == "" {
		conf.Storage.Adapter = DefaultAdapter
	}

	if conf.Storage.Key == "" {
		conf.Storage.Key = conf.Replica.Name
	}

	// Relative paths are interpreted relative to the
	// directory the config file resides in.
	conf.dir, err = filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of config directory: %v", err)
	}

	conf.Storage.Path = absolute(conf.dir, conf.Storage.Path)

	if conf.TLS != nil {
		conf.TLS.CertLoc = absolute(conf.dir, conf.TLS.CertLoc)
		conf.TLS.KeyLoc = absolute(conf.dir, conf.TLS.KeyLoc)
		conf.TLS.RootCertLoc = absolute(conf.dir, conf.TLS.RootCertLoc)
	}

	err = conf.validate()
	if err != nil {
		return nil, err
	}

	return conf, nil
}

// validate checks the settings that must hold
// no matter where they were taken from.
func (conf *Config) validate() error {

	if conf.Replica.ListenSyncAddr == "" {
		return fmt.Errorf("replica '%s' needs a sync address to listen on", conf.Replica.Name)
	}

	if _, found := conf.Peers[conf.Replica.Name]; found {
		return fmt.Errorf("replica '%s' cannot be its own peer", conf.Replica.Name)
	}

	return nil
}

// absolute prefixes a relative, non-empty path with base.
func absolute(base string, path string) string {

	if (path == "") || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(base, path)
}
