package chatui

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"chatagent-backend/internal/models"
)

const (
	ServerErrorText     = "Error en la respuesta del servidor"
	InvalidReplyText    = "Respuesta inválida del servidor"
	ConnectionErrorText = "❌ Error al conectar con el agente IA."
)

// ReplyError carries the sentence shown to the user in place of a reply.
type ReplyError struct {
	Text       string
	StatusCode int
	Err        error
}

func (e *ReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat endpoint: %s: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Text)
}

func (e *ReplyError) Unwrap() error { return e.Err }

// ProxyClient posts chat messages to the proxy endpoint.
type ProxyClient struct {
	http *resty.Client
	url  string
}

func NewProxyClient(url string) *ProxyClient {
	return &ProxyClient{
		http: resty.New().
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json"),
		url: url,
	}
}

// Ask sends {"message": message} and returns the reply. Any non-2xx status or
// a body without a non-empty string "reply" yields a *ReplyError.
func (c *ProxyClient) Ask(ctx context.Context, message string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.ChatRequest{Message: &message}).
		Post(c.url)
	if err != nil {
		return "", &ReplyError{Text: ConnectionErrorText, Err: err}
	}

	reply, ok := parseReply(resp.Body())
	if !resp.IsSuccess() {
		if !ok {
			reply = ServerErrorText
		}
		return "", &ReplyError{Text: reply, StatusCode: resp.StatusCode()}
	}
	if !ok {
		return "", &ReplyError{Text: InvalidReplyText, StatusCode: resp.StatusCode()}
	}

	return reply, nil
}

func parseReply(body []byte) (string, bool) {
	var payload struct {
		Reply *string `json:"reply"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	if payload.Reply == nil || *payload.Reply == "" {
		return "", false
	}
	return *payload.Reply, true
}
