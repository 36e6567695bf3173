package shared

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedRequest struct {
	Name string `json:"name" validate:"required,max=10"`
}

type selfValidating struct {
	Err error
}

func (s selfValidating) Validate() error { return s.Err }

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes a well-formed body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"weekly"}`))

		var dst taggedRequest
		require.NoError(t, DecodeJSON(req, &dst))
		assert.Equal(t, "weekly", dst.Name)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"weekly","nmae":"typo"}`))

		var dst taggedRequest
		assert.Error(t, DecodeJSON(req, &dst))
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))

		var dst taggedRequest
		assert.Error(t, DecodeJSON(req, &dst))
	})
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	t.Run("enforces struct tags", func(t *testing.T) {
		t.Parallel()

		assert.Error(t, ValidateRequest(taggedRequest{}))
		assert.Error(t, ValidateRequest(taggedRequest{Name: "far-too-long-for-the-tag"}))
		assert.NoError(t, ValidateRequest(taggedRequest{Name: "weekly"}))
	})

	t.Run("prefers a type's own Validate method", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("domain rule broken")
		assert.ErrorIs(t, ValidateRequest(selfValidating{Err: sentinel}), sentinel)
		assert.NoError(t, ValidateRequest(selfValidating{}))
	})
}
