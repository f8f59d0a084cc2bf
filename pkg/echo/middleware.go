// Package echo adapts SDK webhook handling to Echo hosts. Import it under
// a distinct name:
//
//	magicecho "github.com/transactlab/magic-go/pkg/echo"
package echo

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	magic "github.com/transactlab/magic-go"
)

// Webhook returns a terminal Echo handler with the same verification and
// status contract as magic.Client.HandleWebhook.
func Webhook(client *magic.Client, handler magic.EventHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, magic.MaxWebhookBody))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "invalid payload",
				"code":  magic.CodeInvalidPayload,
			})
		}
		status, payload := client.ProcessWebhook(
			c.Request().Context(), body, magic.FlattenHeaders(c.Request().Header), handler)
		return c.JSON(status, payload)
	}
}
