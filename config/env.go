package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Structs

// Env holds information specific to the
// system where lwwgraph is deployed. This
// enables host adaptions without needing
// to maintain two different config files.
type Env struct {
	ReplicaName    string
	ListenSyncAddr string
	PrometheusAddr string
	StoragePath    string
}

// Functions

// LoadEnv reads the supplied .env file, if it exists, into
// the process environment and collects the LWWGRAPH_*
// variables. A missing file is not an error.
func LoadEnv(envFile string) (*Env, error) {

	err := godotenv.Load(envFile)
	if (err != nil) && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read in env file '%s' with: %v", envFile, err)
	}

	return &Env{
		ReplicaName:    os.Getenv("LWWGRAPH_REPLICA_NAME"),
		ListenSyncAddr: os.Getenv("LWWGRAPH_LISTEN_SYNC_ADDR"),
		PrometheusAddr: os.Getenv("LWWGRAPH_PROMETHEUS_ADDR"),
		StoragePath:    os.Getenv("LWWGRAPH_STORAGE_PATH"),
	}, nil
}

// Apply overwrites values of conf with all non-empty
// values found in the environment and validates the
// result. A relative storage path is resolved against
// the directory of the config file.
func (env *Env) Apply(conf *Config) error {

	if env.ReplicaName != "" {

		// A storage key defaulted to the old name follows the rename.
		if conf.Storage.Key == conf.Replica.Name {
			conf.Storage.Key = env.ReplicaName
		}

		conf.Replica.Name = env.ReplicaName
	}

	if env.ListenSyncAddr != "" {
		conf.Replica.ListenSyncAddr = env.ListenSyncAddr
	}

	if env.PrometheusAddr != "" {
		conf.Replica.PrometheusAddr = env.PrometheusAddr
	}

	if env.StoragePath != "" {
		conf.Storage.Path = absolute(conf.dir, env.StoragePath)
	}

	return conf.validate()
}
