package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: wordpress url missing", ErrConfiguration), "configuration"},
		{fmt.Errorf("%w: invalid OAuth state", ErrAuthorization), "authorization"},
		{fmt.Errorf("%w: refresh: %w", ErrAuthentication, errors.New("revoked")), "authentication"},
		{fmt.Errorf("%w: WordPress API error: nope", ErrPublish), "publish"},
		{fmt.Errorf("%w: save post: %w", ErrPersistence, errors.New("disk full")), "persistence"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "Kind(%v)", tt.err)
	}
}

func TestWrappedMessageKeepsDetail(t *testing.T) {
	err := fmt.Errorf("%w: WordPress API error: %s", ErrPublish, `{"code":"rest_cannot_create"}`)
	assert.True(t, errors.Is(err, ErrPublish))
	assert.Equal(t, `publish failed: WordPress API error: {"code":"rest_cannot_create"}`, err.Error())
}
