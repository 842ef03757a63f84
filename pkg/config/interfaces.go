package config

import "context"

// ConfigLoader fills dst from some configuration source. path is ignored by
// loaders that do not read files.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configurations that can check themselves.
type Validator interface {
	Validate() error
}
