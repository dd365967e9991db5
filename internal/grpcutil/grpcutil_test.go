package grpcutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorCode(t *testing.T) {
	err := status.New(codes.DataLoss, "").Err()

	assert.Equal(t, codes.DataLoss, ErrorCode(err))
	assert.Equal(t, codes.Unknown, ErrorCode(assert.AnError))
	assert.Equal(t, codes.OK, ErrorCode(nil))
}

func TestIsUnimplemented(t *testing.T) {
	assert.True(t, IsUnimplemented(status.Error(codes.Unimplemented, "")))
	assert.False(t, IsUnimplemented(status.Error(codes.Unavailable, "")))
}
