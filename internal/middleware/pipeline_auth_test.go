package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupPipelineRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(PipelineAuthMiddleware(apiKey))
	r.POST("/reports/generate-all", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pipeline": c.GetBool(PipelineKey)})
	})
	return r
}

func doPipelineRequest(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/reports/generate-all", http.NoBody)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result), rec.Body.String())
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	require.True(t, ok, "expected error object in %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func TestPipelineAuthMiddleware(t *testing.T) {
	const key = "report-pipeline-key"

	t.Run("valid_key_marks_pipeline_caller", func(t *testing.T) {
		rec := doPipelineRequest(setupPipelineRouter(key), key)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, parseBody(t, rec)["pipeline"])
	})

	rejected := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
		wantCode   string
	}{
		{"wrong_key", key, "not-the-key", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"missing_key", key, "", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"prefix_of_key", key, "report-pipeline", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"not_configured", "", "anything", http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED"},
		{"not_configured_and_missing", "", "", http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			rec := doPipelineRequest(setupPipelineRouter(tt.configured), tt.sent)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}
