// Package api talks to the backend that issues relay tickets.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

type ticketRequest struct {
	RequestID string      `json:"requestId"`
	Purpose   string      `json:"purpose"`
	App       appMetadata `json:"app"`
}

type appMetadata struct {
	AppName     string `json:"appName"`
	VersionName string `json:"versionName"`
	TimeZone    string `json:"timeZone"`
}

type ticketResponse struct {
	Result int           `json:"result"`
	Msg    string        `json:"msg"`
	Data   domain.Ticket `json:"data"`
}

// Version is reported to the backend with every request.
var Version = "dev"

// Client fetches relay tickets from the backend.
type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates an API client posting to url.
func NewClient(url string, logger zerolog.Logger) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  logger.With().Str("component", "api").Logger(),
	}
}

// FetchTicket obtains the relay address, relay credentials and ICE servers
// for the holder of token.
func (c *Client) FetchTicket(ctx context.Context, token string) (*domain.Ticket, error) {
	req := ticketRequest{
		RequestID: uuid.NewString(),
		Purpose:   "call",
		App: appMetadata{
			AppName:     "callcore",
			VersionName: Version,
			TimeZone:    time.Local.String(),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	c.log.Debug().Str("url", c.url).Str("request_id", req.RequestID).Msg("fetching ticket")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var ticketResp ticketResponse
	if err := json.Unmarshal(respBody, &ticketResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if ticketResp.Result != 0 {
		return nil, fmt.Errorf("API error (result=%d): %s", ticketResp.Result, ticketResp.Msg)
	}
	if ticketResp.Data.SignalServer == "" {
		return nil, fmt.Errorf("ticket %s has no signal server", ticketResp.Data.ID)
	}

	return &ticketResp.Data, nil
}
