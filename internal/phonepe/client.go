package phonepe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"phonepe-service/internal/config"
	"phonepe-service/internal/models"
)

// Client is a raw HTTP client for the PhonePe checkout and refund APIs.
// Every business call obtains a token first and fails fast, without touching
// the business endpoint, when no token can be obtained.
type Client struct {
	cfg        *config.Config
	tokens     *TokenSource
	httpClient *http.Client
}

// NewClient creates a new PhonePe API client.
func NewClient(cfg *config.Config, tokens *TokenSource) *Client {
	return &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Pay creates a checkout order. The returned map is the gateway's decoded
// response; a response without a redirectUrl is a GatewayError.
func (c *Client) Pay(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	result, err := c.post(ctx, c.cfg.BaseURL+"/checkout/v2/pay", payload, false)
	if err != nil {
		return result, err
	}

	if redirect, _ := result["redirectUrl"].(string); redirect == "" {
		msg, _ := result["message"].(string)
		if msg == "" {
			msg = "no redirect URL in checkout response"
		}
		code, _ := result["code"].(string)
		return result, &models.GatewayError{Code: code, Message: msg}
	}
	return result, nil
}

// OrderStatus fetches the current state of an order.
func (c *Client) OrderStatus(ctx context.Context, merchantOrderID string) (map[string]interface{}, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/checkout/v2/order/%s/status", c.cfg.BaseURL, url.PathEscape(merchantOrderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &models.GatewayError{Message: err.Error()}
	}
	req.Header.Set("Authorization", "O-Bearer "+tok.AccessToken)

	return c.do(req)
}

// Refund submits a refund request for a previously completed order.
func (c *Client) Refund(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	return c.post(ctx, c.cfg.BaseURL+"/payments/v2/refund", payload, true)
}

// post sends an authenticated JSON POST. withMerchantID adds the optional
// X-MERCHANT-ID header used by the refund endpoint.
func (c *Client) post(ctx context.Context, endpoint string, payload map[string]interface{}, withMerchantID bool) (map[string]interface{}, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &models.GatewayError{Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &models.GatewayError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "O-Bearer "+tok.AccessToken)
	if withMerchantID && c.cfg.MerchantID != "" {
		req.Header.Set("X-MERCHANT-ID", c.cfg.MerchantID)
	}

	return c.do(req)
}

// do executes a request and decodes the JSON body. Non-2xx responses come
// back as GatewayError carrying the gateway's code and message when present.
func (c *Client) do(req *http.Request) (map[string]interface{}, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayError{Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, &models.GatewayError{Message: fmt.Sprintf("malformed response: %v", err)}
		}
		return nil, &models.GatewayError{Message: fmt.Sprintf("phonepe API error: %s", resp.Status)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, _ := result["code"].(string)
		msg, _ := result["message"].(string)
		if msg == "" {
			msg = fmt.Sprintf("phonepe API error: %s", resp.Status)
		}
		return result, &models.GatewayError{Code: code, Message: msg}
	}

	return result, nil
}
