package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// chunkedContext builds a request whose length is unknown, as a chunked upload has.
func chunkedContext(body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(body)))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c
}

func TestBindOptionalJSONAcceptsEmptyChunkedBody(t *testing.T) {
	var req model.CancelRequest
	require.NoError(t, BindOptionalJSON(chunkedContext(""), &req))
	assert.Empty(t, req.Reason)
}

func TestBindOptionalJSONDecodesChunkedBody(t *testing.T) {
	var req model.CancelRequest
	require.NoError(t, BindOptionalJSON(chunkedContext(`{"reason":"febbre"}`), &req))
	assert.Equal(t, "febbre", req.Reason)
}

func TestBindOptionalJSONRejectsMalformedBody(t *testing.T) {
	var req model.CancelRequest
	err := BindOptionalJSON(chunkedContext(`{"reason":`), &req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestBindOptionalJSONWithoutBody(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	var req model.CancelRequest
	assert.NoError(t, BindOptionalJSON(c, &req))
}

func TestBindJSONRequiresBody(t *testing.T) {
	var req model.CancelRequest
	err := BindJSON(chunkedContext(""), &req)
	require.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
	appErr, _ := apperrors.As(err)
	assert.Equal(t, "request body is required", appErr.Message)
}
