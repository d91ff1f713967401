package marketplace

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

const defaultShopeeBaseURL = "https://partner.shopeemobile.com"

// ShopeeClient implements MarketplaceClient for the Shopee Open Platform.
// Every call is signed with HMAC-SHA256 over partner id, path and timestamp.
type ShopeeClient struct {
	app        config.MarketplaceApp
	baseURL    string
	pageSize   int
	httpClient *http.Client
	now        func() time.Time
}

// ShopeeOption is a functional option for configuring the client
type ShopeeOption func(*ShopeeClient)

// WithShopeeBaseURL overrides the API base URL (used in tests)
func WithShopeeBaseURL(baseURL string) ShopeeOption {
	return func(c *ShopeeClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewShopeeClient creates a client from the shared marketplace settings
func NewShopeeClient(cfg config.MarketplaceConfig, opts ...ShopeeOption) *ShopeeClient {
	client := &ShopeeClient{
		app:      cfg.Shopee,
		baseURL:  defaultShopeeBaseURL,
		pageSize: cfg.SyncPageSize,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Channel returns the channel this client talks to
func (c *ShopeeClient) Channel() channel.Code {
	return channel.CodeShopee
}

// sign computes the request signature over partner_id + path + timestamp
func (c *ShopeeClient) sign(path string, timestamp int64) string {
	base := fmt.Sprintf("%s%s%d", c.app.ClientID, path, timestamp)
	mac := hmac.New(sha256.New, []byte(c.app.ClientSecret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

type shopeeTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireIn     int    `json:"expire_in"`
	ShopID       int64  `json:"shop_id"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

// ExchangeCode swaps an OAuth authorization code for a token pair
func (c *ShopeeClient) ExchangeCode(ctx context.Context, code string) (*integration.TokenExchange, error) {
	payload := map[string]interface{}{
		"code":       code,
		"partner_id": c.app.ClientID,
	}
	return c.requestToken(ctx, "/api/v2/auth/token/get", payload)
}

// RefreshToken refreshes an expired access token
func (c *ShopeeClient) RefreshToken(ctx context.Context, refreshToken string) (*integration.TokenExchange, error) {
	payload := map[string]interface{}{
		"refresh_token": refreshToken,
		"partner_id":    c.app.ClientID,
	}
	return c.requestToken(ctx, "/api/v2/auth/access_token/get", payload)
}

func (c *ShopeeClient) requestToken(ctx context.Context, path string, payload map[string]interface{}) (*integration.TokenExchange, error) {
	body, status, err := c.doRequest(ctx, path, payload, "")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, status)
	}

	var token shopeeTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("shopee: failed to decode token response: %w", err)
	}
	if token.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, token.Message)
	}
	if token.AccessToken == "" {
		return nil, ErrAuthFailed
	}

	return &integration.TokenExchange{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    time.Duration(token.ExpireIn) * time.Second,
		AccountID:    fmt.Sprintf("%d", token.ShopID),
	}, nil
}

type shopeeOrderListResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Response struct {
		More      bool          `json:"more"`
		OrderList []shopeeOrder `json:"order_list"`
	} `json:"response"`
}

type shopeeOrder struct {
	OrderSN     string      `json:"order_sn"`
	CreateTime  int64       `json:"create_time"`
	TotalAmount json.Number `json:"total_amount"`
	EscrowFee   json.Number `json:"escrow_fee"`
	ShopName    string      `json:"shop_name"`
	ItemList    []struct {
		ItemSKU  string      `json:"item_sku"`
		ItemName string      `json:"item_name"`
		Quantity int         `json:"model_quantity_purchased"`
		Price    json.Number `json:"model_discounted_price"`
	} `json:"item_list"`
}

// ListOrders lists orders created since the cutoff, paging through results
func (c *ShopeeClient) ListOrders(ctx context.Context, accessToken string, since time.Time) ([]integration.MarketplaceOrder, error) {
	limit := c.pageSize
	if limit <= 0 {
		limit = 50
	}

	var orders []integration.MarketplaceOrder
	offset := 0
	for {
		payload := map[string]interface{}{
			"partner_id":       c.app.ClientID,
			"time_range_field": "create_time",
			"time_from":        since.Unix(),
			"time_to":          c.now().Unix(),
			"page_size":        limit,
			"offset":           offset,
		}

		body, status, err := c.doRequest(ctx, "/api/v2/order/get_order_list", payload, accessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, status)
		}
		if status >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, status)
		}

		var page shopeeOrderListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("shopee: failed to decode order list: %w", err)
		}
		if page.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, page.Message)
		}

		for i := range page.Response.OrderList {
			orders = append(orders, convertShopeeOrder(&page.Response.OrderList[i]))
		}

		if !page.Response.More || len(page.Response.OrderList) == 0 {
			break
		}
		offset += limit
	}
	return orders, nil
}

func convertShopeeOrder(o *shopeeOrder) integration.MarketplaceOrder {
	gross := parseAPIDecimal(o.TotalAmount.String())
	order := integration.MarketplaceOrder{
		ExternalID:  o.OrderSN,
		OrderID:     o.OrderSN,
		Date:        time.Unix(o.CreateTime, 0).UTC(),
		GrossAmount: gross,
		NetAmount:   gross,
		StoreName:   o.ShopName,
	}
	if fee := parseAPIDecimal(o.EscrowFee.String()); !fee.IsZero() {
		order.Commission = &fee
		order.NetAmount = gross.Sub(fee)
	}
	for _, line := range o.ItemList {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		unit := parseAPIDecimal(line.Price.String())
		order.Items = append(order.Items, integration.MarketplaceOrderItem{
			ChannelSKU: line.ItemSKU,
			Title:      line.ItemName,
			Quantity:   qty,
			UnitPrice:  unit,
			LineTotal:  unit.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return order
}

func (c *ShopeeClient) doRequest(ctx context.Context, path string, payload map[string]interface{}, accessToken string) ([]byte, int, error) {
	timestamp := c.now().Unix()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("shopee: failed to marshal request: %w", err)
	}

	fullURL := fmt.Sprintf("%s%s?partner_id=%s&timestamp=%d&sign=%s",
		c.baseURL, path, c.app.ClientID, timestamp, c.sign(path, timestamp))
	if accessToken != "" {
		fullURL += "&access_token=" + accessToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("shopee: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("shopee: failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Ensure ShopeeClient implements MarketplaceClient
var _ integration.MarketplaceClient = (*ShopeeClient)(nil)
