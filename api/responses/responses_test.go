package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "world", data["hello"])
}

func TestWriteRawSkipsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRaw(rec, 200, map[string]any{"received": true})

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["received"])
	_, hasData := body["data"]
	assert.False(t, hasData)
}

func TestWriteErrorMapsCodeToStatus(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input"), 400, "VALIDATION_ERROR"},
		{pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), 404, "NOT_FOUND"},
		{pkgerrors.New(pkgerrors.CodeForbidden, "access denied"), 403, "FORBIDDEN"},
		{pkgerrors.New(pkgerrors.CodeRateLimit, "Too many requests."), 429, "RATE_LIMIT_EXCEEDED"},
		{pkgerrors.New(pkgerrors.CodeDependency, "Rate limiter unavailable."), 503, "DEPENDENCY_ERROR"},
		{errors.New("plain error"), 500, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, tc.err)

		assert.Equal(t, tc.wantStatus, rec.Code, tc.wantCode)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		errObj, ok := body["error"].(map[string]any)
		require.True(t, ok, tc.wantCode)
		assert.Equal(t, tc.wantCode, errObj["code"])
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeInternal, "pq: connection failure at 10.0.0.3"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "internal server error", errObj["message"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestWriteErrorPassesThroughSafeMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "report not available"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "report not available", errObj["message"])
}
