// Package gin adapts SDK webhook handling to Gin hosts. Import it under a
// distinct name:
//
//	magicgin "github.com/transactlab/magic-go/pkg/gin"
package gin

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	magic "github.com/transactlab/magic-go"
	"github.com/transactlab/magic-go/webhook"
)

// EventKey is the context key VerifySignature stores the verified event
// under.
const EventKey = "magic.event"

// Webhook returns a terminal Gin handler with the same verification and
// status contract as magic.Client.HandleWebhook.
func Webhook(client *magic.Client, handler magic.EventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid payload",
				"code":  magic.CodeInvalidPayload,
			})
			return
		}
		status, payload := client.ProcessWebhook(
			c.Request.Context(), body, magic.FlattenHeaders(c.Request.Header), handler)
		c.JSON(status, payload)
	}
}

// VerifySignature is middleware that authenticates the delivery before the
// route handler runs. The verified *webhook.Event lands in the Gin context
// under EventKey, and the request body is restored so downstream handlers
// can read it again.
func VerifySignature(v *webhook.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid payload",
				"code":  magic.CodeInvalidPayload,
			})
			return
		}
		event, err := v.Verify(body, magic.FlattenHeaders(c.Request.Header))
		if err != nil {
			var payloadErr *webhook.PayloadError
			if errors.As(err, &payloadErr) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "invalid payload",
					"code":  magic.CodeInvalidPayload,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid signature",
				"code":  magic.CodeInvalidSignature,
			})
			return
		}

		c.Set(EventKey, event)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// EventFromContext returns the event stored by VerifySignature.
func EventFromContext(c *gin.Context) (*webhook.Event, bool) {
	value, ok := c.Get(EventKey)
	if !ok {
		return nil, false
	}
	event, ok := value.(*webhook.Event)
	return event, ok
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, magic.MaxWebhookBody))
}
