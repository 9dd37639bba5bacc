package filestore

import "github.com/koustreak/pgedit/internal/errs"

// Config locates the S3-compatible endpoint and bucket that audit records
// are written to.
type Config struct {
	Endpoint  string // host:port
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string // empty for MinIO
	Bucket    string
}

// DefaultConfig returns a plaintext config for a local MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{Endpoint: endpoint, AccessKey: accessKey, SecretKey: secretKey}
}

func (c *Config) Validate() error {
	switch {
	case c == nil || c.Endpoint == "":
		return errs.New(errs.ErrKindInvalidInput, "object store endpoint is required")
	case c.Bucket == "":
		return errs.New(errs.ErrKindInvalidInput, "object store bucket is required")
	}
	return nil
}
