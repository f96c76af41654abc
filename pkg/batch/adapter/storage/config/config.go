// Package config holds the settings of a storage connection.
package config

import "github.com/mitchellh/mapstructure"

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // "gcs"
	BucketName      string `yaml:"bucket_name"`      // default bucket when a location omits it
	CredentialsFile string `yaml:"credentials_file"` // service account key; empty means application default credentials
	Endpoint        string `yaml:"endpoint"`         // overrides the service endpoint (emulators)
}

// DecodeStorageConfig converts one raw entry of surfin.adapter.storage into a StorageConfig.
func DecodeStorageConfig(raw interface{}) (StorageConfig, error) {
	var cfg StorageConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	err = decoder.Decode(raw)
	return cfg, err
}
