package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/crewdeck/crewdeck/pkg/errors"
)

func performJSON(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSuccessEnvelope(t *testing.T) {
	rec, body := performJSON(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"id": "abc"})
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestSuccessWithMetaComputesTotalPages(t *testing.T) {
	_, body := performJSON(t, func(c *gin.Context) {
		SuccessWithMeta(c, http.StatusOK, []string{}, &Meta{Page: 2, PerPage: 20, Total: 41})
	})

	require.NotNil(t, body.Meta)
	require.Equal(t, 3, body.Meta.TotalPages)
}

func TestErrorEnvelope(t *testing.T) {
	rec, body := performJSON(t, func(c *gin.Context) {
		Error(c, appErrors.ErrForbidden)
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, body.Success)
	require.Equal(t, "FORBIDDEN", body.Error.Code)
}

func TestErrorDefaultsToInternal(t *testing.T) {
	rec, body := performJSON(t, func(c *gin.Context) {
		Error(c, nil)
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
}
