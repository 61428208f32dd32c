package internal

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	app := fiber.New()
	Routes(app)

	for _, path := range []string{"/", "/health"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var payload struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.True(t, payload.Status)
		assert.Contains(t, payload.Message, "running")
	}
}

func TestFavicon(t *testing.T) {
	app := fiber.New()
	Routes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
