// Package config resolves credentials, datastore and artifact settings from the
// environment, and loads the experiment configuration file.
package config

import (
	"os"
	"strings"

	"prereg/internal/blob"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

// Environment variable names.
const (
	EnvAPIKey         = "OPENROUTER_API_KEY"
	EnvAPIKeyFallback = "LLM_DEFAULT_API_KEY"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvStorageDriver  = "PREREG_STORAGE_DRIVER"
	EnvArtifactDriver = "PREREG_ARTIFACT_DRIVER"
	EnvArtifactFSRoot = "PREREG_ARTIFACT_FS_ROOT"
	EnvS3Bucket       = "PREREG_ARTIFACT_S3_BUCKET"
	EnvS3Region       = "PREREG_ARTIFACT_S3_REGION"
	EnvS3Endpoint     = "PREREG_ARTIFACT_S3_ENDPOINT"
	EnvS3PathStyle    = "PREREG_ARTIFACT_S3_PATH_STYLE"
	EnvS3AccessKey    = "AWS_ACCESS_KEY_ID"
	EnvS3SecretKey    = "AWS_SECRET_ACCESS_KEY"
	EnvS3SessionToken = "AWS_SESSION_TOKEN"
)

// DefaultArtifactRoot is where the filesystem artifact driver writes.
const DefaultArtifactRoot = "."

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Env reads settings through a lookup function.
type Env struct {
	lookup LookupFunc
}

// FromOS reads the process environment.
func FromOS() Env { return Env{lookup: os.LookupEnv} }

// FromMap reads a fixed set of values.
func FromMap(values map[string]string) Env {
	return Env{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

func (e Env) get(key string) string {
	if e.lookup == nil {
		return ""
	}
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

// APIKey returns the inference credential, preferring OPENROUTER_API_KEY.
func (e Env) APIKey() (string, error) {
	if v := e.get(EnvAPIKey); v != "" {
		return v, nil
	}
	if v := e.get(EnvAPIKeyFallback); v != "" {
		return v, nil
	}
	return "", domain.ConfigError{Key: EnvAPIKey, Reason: "no API key found; set " + EnvAPIKey + " or " + EnvAPIKeyFallback}
}

// DatabaseURL returns the datastore connection string.
func (e Env) DatabaseURL() (string, error) {
	if v := e.get(EnvDatabaseURL); v != "" {
		return v, nil
	}
	return "", domain.ConfigError{Key: EnvDatabaseURL, Reason: "not set"}
}

// StorageDriver returns the datastore driver, postgres when unset.
func (e Env) StorageDriver() (storage.Driver, error) {
	switch d := storage.Driver(strings.ToLower(e.get(EnvStorageDriver))); d {
	case "", storage.DriverPostgres:
		return storage.DriverPostgres, nil
	case storage.DriverSQLite:
		return d, nil
	default:
		return "", domain.ConfigError{Key: EnvStorageDriver, Reason: "unknown driver " + string(d)}
	}
}

// Artifacts returns the artifact store options, filesystem when unset.
func (e Env) Artifacts() (blob.Options, error) {
	opts := blob.Options{Driver: blob.Driver(strings.ToLower(e.get(EnvArtifactDriver)))}
	switch opts.Driver {
	case "":
		opts.Driver = blob.DriverFilesystem
		fallthrough
	case blob.DriverFilesystem:
		opts.FSRoot = e.get(EnvArtifactFSRoot)
		if opts.FSRoot == "" {
			opts.FSRoot = DefaultArtifactRoot
		}
	case blob.DriverMemory:
	case blob.DriverS3:
		opts.S3 = blob.S3Config{
			Bucket:          e.get(EnvS3Bucket),
			Region:          e.get(EnvS3Region),
			Endpoint:        e.get(EnvS3Endpoint),
			PathStyle:       strings.EqualFold(e.get(EnvS3PathStyle), "true"),
			AccessKeyID:     e.get(EnvS3AccessKey),
			SecretAccessKey: e.get(EnvS3SecretKey),
			SessionToken:    e.get(EnvS3SessionToken),
		}
		if opts.S3.Bucket == "" {
			return blob.Options{}, domain.ConfigError{Key: EnvS3Bucket, Reason: "required for the s3 artifact driver"}
		}
	default:
		return blob.Options{}, domain.ConfigError{Key: EnvArtifactDriver, Reason: "unknown driver " + string(opts.Driver)}
	}
	return opts, nil
}
