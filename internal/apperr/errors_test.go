package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("subscribe: %w", NotFound("get plan", "plan not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindStore))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestNetwork_CrossOriginSignature(t *testing.T) {
	err := Network("mpesa stk push", errors.New("TypeError: Failed to fetch"))
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.True(t, e.CrossOrigin)
	assert.Equal(t, RelayHint, Message(err))

	plain := Network("mpesa stk push", errors.New("dial tcp: connection refused"))
	assert.Equal(t, "network error contacting payment gateway", Message(plain))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "plan not found", Message(NotFound("get plan", "plan not found")))
	assert.Equal(t, "could not save your changes, please try again", Message(Store("create payment", errors.New("disk full"))))
	assert.Equal(t, "internal error", Message(errors.New("raw")))
	assert.Equal(t, "", Message(nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindGateway))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(KindNetwork))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindStore))
}

func TestError_Format(t *testing.T) {
	err := Gateway("paystack verify", "verification failed", errors.New("status 500"))
	assert.Equal(t, "paystack verify: verification failed: status 500", err.Error())
	assert.Equal(t, "get plan: plan not found", NotFound("get plan", "plan not found").Error())
}
