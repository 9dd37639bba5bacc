package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/pgedit/internal/errs"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
	assert.True(t, errs.IsInvalidInput(cfg.Validate()), "bucket missing")

	cfg.Bucket = "pgedit-audit"
	assert.NoError(t, cfg.Validate())

	cfg.Endpoint = ""
	assert.True(t, errs.IsInvalidInput(cfg.Validate()))

	var nilCfg *Config
	assert.True(t, errs.IsInvalidInput(nilCfg.Validate()))
}
