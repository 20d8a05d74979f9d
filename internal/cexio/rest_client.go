package cexio

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cexio-trade-bot-go/internal/config"
	"cexio-trade-bot-go/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL    = "https://cex.io/api"
	maxRetries = 3
)

// OrderRejectedError is returned when CEX.IO accepts the request at the
// transport level but rejects the order itself, e.g. for insufficient
// funds. Callers distinguish it from transport failures with errors.As.
type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected by exchange: %s", e.Reason)
}

// AssetBalance is the per-asset entry of a balance response.
type AssetBalance struct {
	Available json.Number `json:"available"`
	Orders    json.Number `json:"orders"`
}

// Ticker is the subset of the ticker response the bot uses.
type Ticker struct {
	Bid json.Number `json:"bid"`
	Ask json.Number `json:"ask"`
}

// OpenOrder is one entry of an open-orders response. Time is normalized
// from the exchange's millisecond epoch to UTC here, at the boundary;
// everything downstream compares in UTC.
type OpenOrder struct {
	ID     string
	Side   string // "BUY" or "SELL"
	Price  json.Number
	Amount json.Number
	Time   time.Time
}

// PlacedOrder is the confirmed payload of a successful order placement.
// Values are kept exactly as the exchange sent them; the decision engine
// owns parsing and validation.
type PlacedOrder struct {
	ID     string
	Side   string
	Price  json.Number
	Amount json.Number
}

// RestClientInterface defines the interface for the CEX.IO REST API client.
type RestClientInterface interface {
	Balance() (map[string]AssetBalance, error)
	Ticker(pair models.Pair) (*Ticker, error)
	OpenOrders(pair models.Pair) ([]OpenOrder, error)
	CancelOrder(id string) (bool, error)
	PlaceLimitOrder(side string, amount, price string, pair models.Pair) (*PlacedOrder, error)
}

// RestClient is a client for the CEX.IO REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	username  string
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
	nonce     func() string
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new CEX.IO REST API client.
func NewRestClient(cfg *config.Cexio, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(baseURL)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		username:  cfg.Username,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
		nonce:     func() string { return strconv.FormatInt(time.Now().UnixMilli(), 10) },
	}
}

// sign creates the HMAC-SHA256 signature CEX.IO expects for private calls:
// hex(HMAC-SHA256(nonce + username + apiKey, secret)), upper-cased.
func (c *RestClient) sign(nonce string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(nonce + c.username + c.apiKey))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// signedForm builds the authentication form fields for a private call and
// merges in any endpoint-specific params.
func (c *RestClient) signedForm(params map[string]string) map[string]string {
	nonce := c.nonce()
	form := map[string]string{
		"key":       c.apiKey,
		"signature": c.sign(nonce),
		"nonce":     nonce,
	}
	for k, v := range params {
		form[k] = v
	}
	return form
}

// doRequest handles the actual request execution with rate limiting and
// retry logic. maxAttempts is 1 for non-idempotent calls: an ambiguous
// order placement must never be resubmitted blindly.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request, maxAttempts int) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxAttempts; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if i == maxAttempts-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, err)
	}
	return nil, fmt.Errorf("request failed after %d attempts with status %s: %s", maxAttempts, resp.Status(), resp.String())
}

// Ticker fetches the current ticker for a pair. This is also a cheap
// connectivity check on startup.
func (c *RestClient) Ticker(pair models.Pair) (*Ticker, error) {
	var ticker Ticker

	req := c.client.R().
		SetResult(&ticker).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/ticker/%s/%s", pair.Base(), pair.Quote()), req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker for %s: %w", pair, err)
	}

	result := resp.Result().(*Ticker)
	if result.Bid.String() == "" {
		return nil, fmt.Errorf("ticker response for %s is missing a bid: %s", pair, resp.String())
	}
	return result, nil
}

// Balance fetches the account balance for all assets. The raw response
// mixes metadata keys with per-asset objects, so only the entries that
// decode as balances are kept.
func (c *RestClient) Balance() (map[string]AssetBalance, error) {
	req := c.client.R().
		SetFormData(c.signedForm(nil))
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", "/balance/", req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode balance response: %w", err)
	}
	if errMsg, ok := raw["error"]; ok {
		return nil, fmt.Errorf("balance request failed: %s", string(errMsg))
	}

	balances := make(map[string]AssetBalance, len(raw))
	for asset, entry := range raw {
		var b AssetBalance
		if err := json.Unmarshal(entry, &b); err != nil {
			continue // metadata key such as "timestamp" or "username"
		}
		if b.Available.String() == "" {
			continue
		}
		balances[asset] = b
	}

	return balances, nil
}

// openOrderResponse is the wire shape of one open-orders entry.
type openOrderResponse struct {
	ID      string      `json:"id"`
	Time    json.Number `json:"time"` // millisecond epoch
	Type    string      `json:"type"` // "buy" or "sell"
	Price   json.Number `json:"price"`
	Amount  json.Number `json:"amount"`
	Pending json.Number `json:"pending"`
}

// OpenOrders fetches the currently open orders for a pair.
func (c *RestClient) OpenOrders(pair models.Pair) ([]OpenOrder, error) {
	var entries []openOrderResponse

	req := c.client.R().
		SetFormData(c.signedForm(nil)).
		SetResult(&entries)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/open_orders/%s/%s", pair.Base(), pair.Quote()), req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders for %s: %w", pair, err)
	}

	result := *resp.Result().(*[]openOrderResponse)
	orders := make([]OpenOrder, 0, len(result))
	for _, entry := range result {
		ms, err := entry.Time.Int64()
		if err != nil {
			return nil, fmt.Errorf("open order %s has an invalid timestamp %q: %w", entry.ID, entry.Time, err)
		}
		orders = append(orders, OpenOrder{
			ID:     entry.ID,
			Side:   strings.ToUpper(entry.Type),
			Price:  entry.Price,
			Amount: entry.Amount,
			Time:   time.UnixMilli(ms).UTC(),
		})
	}

	return orders, nil
}

// CancelOrder cancels an open order. The exchange answers with a bare
// "true" on success; anything else is treated as not cancelled.
func (c *RestClient) CancelOrder(id string) (bool, error) {
	req := c.client.R().
		SetFormData(c.signedForm(map[string]string{"id": id}))
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", "/cancel_order/", req, maxRetries)
	if err != nil {
		return false, fmt.Errorf("failed to cancel order %s: %w", id, err)
	}

	cancelled := strings.TrimSpace(resp.String()) == "true"
	if !cancelled {
		c.logger.Warn("Exchange did not confirm cancellation",
			zap.String("order_id", id),
			zap.String("response", resp.String()),
		)
	}
	return cancelled, nil
}

// placeOrderResponse is the wire shape of a place-order reply. Success and
// rejection share one endpoint; a non-empty Error marks a rejection.
type placeOrderResponse struct {
	Error   string      `json:"error"`
	ID      string      `json:"id"`
	Time    json.Number `json:"time"`
	Type    string      `json:"type"`
	Price   json.Number `json:"price"`
	Amount  json.Number `json:"amount"`
	Pending json.Number `json:"pending"`
}

// PlaceLimitOrder places a limit order. side is "BUY" or "SELL"; amount is
// in the base asset and price in the quote currency, both as decimal text.
//
// A rejection by the exchange is returned as *OrderRejectedError. The call
// is never retried: a network failure after submission is ambiguous, and
// resubmitting could double-fill.
func (c *RestClient) PlaceLimitOrder(side string, amount, price string, pair models.Pair) (*PlacedOrder, error) {
	var result placeOrderResponse

	req := c.client.R().
		SetFormData(c.signedForm(map[string]string{
			"type":   strings.ToLower(side),
			"amount": amount,
			"price":  price,
		})).
		SetResult(&result)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/place_order/%s/%s", pair.Base(), pair.Quote()), req, 1)
	if err != nil {
		c.logger.Error("Failed to place order",
			zap.Error(err),
			zap.String("pair", pair.String()),
			zap.String("side", side),
		)
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	parsed := resp.Result().(*placeOrderResponse)
	if parsed.Error != "" {
		return nil, &OrderRejectedError{Reason: parsed.Error}
	}

	placed := &PlacedOrder{
		ID:     parsed.ID,
		Side:   strings.ToUpper(parsed.Type),
		Price:  parsed.Price,
		Amount: parsed.Amount,
	}
	c.logger.Info("Successfully placed order", zap.Any("order", placed))
	return placed, nil
}
