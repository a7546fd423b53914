package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/httputil"
	"github.com/jwalitptl/physio-api/pkg/validator"
)

// DebugKey marks requests whose error responses may carry internal detail.
const DebugKey = "physio.debug"

// Guard returns the middleware enforcing action on a route.
type Guard func(action rbac.Action) gin.HandlerFunc

// RespondError is the single error formatter for the API.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	httputil.RespondWithError(c, err, c.GetBool(DebugKey))
}

func OK(c *gin.Context, message string, data interface{}) {
	httputil.RespondWithSuccess(c, http.StatusOK, message, data)
}

func Created(c *gin.Context, message string, data interface{}) {
	httputil.RespondWithSuccess(c, http.StatusCreated, message, data)
}

func Paginated(c *gin.Context, message string, data interface{}, page model.Page, total int) {
	httputil.RespondWithPagination(c, message, data, httputil.NewPagination(page.Page, page.Limit, total))
}

// BindJSON decodes the body into dst and runs binding rules, reporting
// failures as field-level validation errors.
func BindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is required")
		}
		return validator.Translate("invalid request body", err)
	}
	return nil
}

// BindOptionalJSON is BindJSON for endpoints whose body may be empty,
// including an empty chunked body of unknown length.
func BindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return validator.Translate("invalid request body", err)
	}
	return nil
}

func ParamID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid id", apperrors.FieldError{Field: name, Message: "must be a UUID"})
	}
	return id, nil
}

// QueryID parses an optional UUID query parameter.
func QueryID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.Validation("invalid query", apperrors.FieldError{Field: name, Message: "must be a UUID"})
	}
	return &id, nil
}

func QueryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.Validation("invalid query", apperrors.FieldError{Field: name, Message: "must be true or false"})
	}
	return &v, nil
}

// PDF sends content as a downloadable PDF attachment.
func PDF(c *gin.Context, filename string, content []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", content)
}

func PageParams(c *gin.Context) model.Page {
	page, limit := httputil.PageParams(c)
	return model.Page{Page: page, Limit: limit}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
