package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	miniosdk "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/pgedit/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"status 404", miniosdk.ErrorResponse{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"status 403", miniosdk.ErrorResponse{StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"status 400", miniosdk.ErrorResponse{StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"no such bucket", miniosdk.ErrorResponse{Code: "NoSuchBucket"}, errs.ErrKindNotFound},
		{"access denied wrapped", fmt.Errorf("put: %w", miniosdk.ErrorResponse{Code: "AccessDenied"}), errs.ErrKindPermissionDenied},
		{"slow down", miniosdk.ErrorResponse{Code: "SlowDown"}, errs.ErrKindTimeout},
		{"unknown code", miniosdk.ErrorResponse{Code: "InternalError", StatusCode: 500}, errs.ErrKindConnectionFailed},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			assert.Equal(t, tt.want, errs.KindOf(got))
			assert.Equal(t, "op failed", errs.UserMessage(got))
		})
	}

	assert.NoError(t, mapError(nil, "unused"))
}
