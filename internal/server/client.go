// Package server is the dashboard API client: per-frame state deltas, crop
// profile writeback, learn-session reports, and the optional websocket live
// feed. Transport failures are logged and dropped; the pipeline never
// blocks or retries on the dashboard.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client talks to the dashboard server.
type Client struct {
	baseURL   string
	apiSecret string
	http      *http.Client
	log       *zap.Logger

	ws *websocket.Conn
}

// deltaTimeout bounds each state POST; a slow dashboard must not stall the
// frame loop.
const deltaTimeout = time.Second

// NewClient builds a client. apiSecret may be empty (no auth header).
func NewClient(baseURL, apiSecret string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: deltaTimeout},
		log:       log,
	}
}

// PushDelta POSTs a state delta for a racer. Failures are logged and
// dropped.
func (c *Client) PushDelta(racer string, delta map[string]any) {
	url := fmt.Sprintf("%s/api/vision/%s", c.baseURL, racer)
	if err := c.postJSON(url, delta, deltaTimeout); err != nil {
		c.log.Warn("push failed", zap.Error(err))
		return
	}
	if c.ws != nil {
		if err := c.ws.WriteJSON(delta); err != nil {
			c.log.Warn("live feed write failed, closing", zap.Error(err))
			c.ws.Close()
			c.ws = nil
		}
	}
}

// UpdateCropProfile PUTs calibrated fields back onto a stored crop profile.
func (c *Client) UpdateCropProfile(profileID string, fields map[string]any) error {
	url := fmt.Sprintf("%s/api/crop-profiles/%s", c.baseURL, profileID)
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal profile update: %w", err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build profile update: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("update crop profile: %w", err)
	}
	resp.Body.Close()
	return nil
}

// PostLearnProgress reports batch progress; failures never fail the session.
func (c *Client) PostLearnProgress(sessionID string, progress map[string]any) {
	url := fmt.Sprintf("%s/api/learn/sessions/%s/progress", c.baseURL, sessionID)
	if err := c.postJSON(url, progress, 5*time.Second); err != nil {
		c.log.Debug("progress post failed", zap.Error(err))
	}
}

// PostLearnReport POSTs the final learn report.
func (c *Client) PostLearnReport(sessionID string, report any) error {
	url := fmt.Sprintf("%s/api/learn/sessions/%s/report", c.baseURL, sessionID)
	if err := c.postJSON(url, report, 10*time.Second); err != nil {
		return fmt.Errorf("post learn report: %w", err)
	}
	return nil
}

// DialLiveFeed connects the websocket live feed for a racer. Subsequent
// PushDelta calls mirror deltas onto the socket.
func (c *Client) DialLiveFeed(racer string) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		fmt.Sprintf("/ws/vision/%s", racer)
	header := http.Header{}
	if token := c.bearer(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("dial live feed: %w", err)
	}
	c.ws = conn
	return nil
}

// Close shuts the live feed down.
func (c *Client) Close() {
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

func (c *Client) postJSON(url string, payload any, timeout time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// bearer signs a short-lived HS256 token. The dashboard accepts any token
// signed with the shared API secret; claims carry only the issuer and an
// expiry.
func (c *Client) bearer() string {
	if c.apiSecret == "" {
		return ""
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "vision-engine",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(c.apiSecret))
	if err != nil {
		c.log.Warn("token signing failed", zap.Error(err))
		return ""
	}
	return signed
}
