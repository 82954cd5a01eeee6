package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatgate/internal/ctx"
	"chatgate/internal/providers"
	"chatgate/internal/shared"

	"github.com/labstack/echo/v4"
)

// ChatRequest proxies one chat completion. Success is a chunked text body;
// failure before the first chunk is a JSON {message} with the classified
// status. Failures after streaming has started can only be logged.
func (m *Manager) ChatRequest(cc echo.Context) error {
	c := cc.(*ctx.Context)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		c.LogValues.AddError(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "failed to read request body"})
	}

	var chatBody shared.ChatBody
	if err := json.Unmarshal(body, &chatBody); err != nil {
		c.LogValues.AddError(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid JSON format"})
	}
	if chatBody.ChatSettings.Model == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "model is required"})
	}
	if len(chatBody.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "messages are required"})
	}

	req := &shared.ChatRequest{
		Model:       chatBody.ChatSettings.Model,
		Messages:    chatBody.Messages,
		Temperature: chatBody.ChatSettings.Temperature,
	}

	m.usageCache.AddInFlight(c.User.UserID)
	defer m.usageCache.RemoveInFlight(c.User.UserID)

	started := false
	emit := func(chunk shared.StreamChunk) error {
		if !started {
			c.Response().Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
			c.Response().WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := c.Response().Write([]byte(chunk.Content)); err != nil {
			return err
		}
		c.Response().Flush()
		return nil
	}

	result, streamErr := m.Stream(c.Request().Context(), c.User.UserID, req, emit)

	if streamErr != nil {
		c.LogValues.AddError(streamErr)
		if started {
			// Headers are gone; the truncated body is the signal. The
			// chunks already delivered remain valid.
			c.LogValues.LogLevel = "ERROR"
		} else {
			status, message := errorResponse(streamErr)
			return c.JSON(status, map[string]string{"message": message})
		}
	}

	if result != nil {
		m.recordUsage(c, req, result)
	}
	return nil
}

func errorResponse(err error) (int, string) {
	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		status := perr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, perr.Message
	}
	var rerr *shared.RequestError
	if errors.As(err, &rerr) {
		return rerr.StatusCode, rerr.Err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func (m *Manager) recordUsage(c *ctx.Context, req *shared.ChatRequest, result *StreamResult) {
	usage := &shared.StreamUsage{
		UserID:           c.User.UserID,
		Model:            req.Model,
		Provider:         result.Provider,
		Chunks:           result.Chunks,
		TimeToFirstChunk: result.TimeToFirstChunk,
		TotalTime:        result.TotalTime,
		Completed:        result.Completed,
		Canceled:         result.Canceled,
		CreatedAt:        time.Now(),
	}
	m.usageCache.AddStreamToBucket(c.User.UserID, usage, fmt.Sprintf("req_%s", c.Reqid))
}

// Models returns the static model table so clients can populate pickers.
func (m *Manager) Models(cc echo.Context) error {
	c := cc.(*ctx.Context)
	return c.JSON(http.StatusOK, map[string]any{
		"data": providers.ListModels(),
	})
}
