package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

const defaultMercadoLivreBaseURL = "https://api.mercadolibre.com"

// MercadoLivreClient implements MarketplaceClient for the Mercado Livre API
type MercadoLivreClient struct {
	app        config.MarketplaceApp
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// MercadoLivreOption is a functional option for configuring the client
type MercadoLivreOption func(*MercadoLivreClient)

// WithMercadoLivreBaseURL overrides the API base URL (used in tests)
func WithMercadoLivreBaseURL(baseURL string) MercadoLivreOption {
	return func(c *MercadoLivreClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewMercadoLivreClient creates a client from the shared marketplace settings
func NewMercadoLivreClient(cfg config.MarketplaceConfig, opts ...MercadoLivreOption) *MercadoLivreClient {
	client := &MercadoLivreClient{
		app:      cfg.MercadoLivre,
		baseURL:  defaultMercadoLivreBaseURL,
		pageSize: cfg.SyncPageSize,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Channel returns the channel this client talks to
func (c *MercadoLivreClient) Channel() channel.Code {
	return channel.CodeMercadoLivre
}

type mlTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode swaps an OAuth authorization code for a token pair
func (c *MercadoLivreClient) ExchangeCode(ctx context.Context, code string) (*integration.TokenExchange, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.app.ClientID)
	form.Set("client_secret", c.app.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.app.RedirectURL)
	return c.requestToken(ctx, form)
}

// RefreshToken refreshes an expired access token
func (c *MercadoLivreClient) RefreshToken(ctx context.Context, refreshToken string) (*integration.TokenExchange, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.app.ClientID)
	form.Set("client_secret", c.app.ClientSecret)
	form.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, form)
}

func (c *MercadoLivreClient) requestToken(ctx context.Context, form url.Values) (*integration.TokenExchange, error) {
	body, status, err := c.doRequest(ctx, http.MethodPost, "/oauth/token", form.Encode(), "application/x-www-form-urlencoded", "")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, status)
	}

	var token mlTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("mercado livre: failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrAuthFailed
	}

	return &integration.TokenExchange{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
		ExpiresIn:    time.Duration(token.ExpiresIn) * time.Second,
		AccountID:    fmt.Sprintf("%d", token.UserID),
	}, nil
}

type mlOrderSearchResponse struct {
	Results []mlOrder `json:"results"`
	Paging  struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	} `json:"paging"`
}

type mlOrder struct {
	ID          int64       `json:"id"`
	DateCreated string      `json:"date_created"`
	TotalAmount json.Number `json:"total_amount"`
	PaidAmount  json.Number `json:"paid_amount"`
	Payments    []struct {
		MarketplaceFee json.Number `json:"marketplace_fee"`
	} `json:"payments"`
	Shipping struct {
		Cost json.Number `json:"cost"`
	} `json:"shipping"`
	Seller struct {
		Nickname string `json:"nickname"`
	} `json:"seller"`
	OrderItems []struct {
		Item struct {
			SellerSKU string `json:"seller_sku"`
			Title     string `json:"title"`
		} `json:"item"`
		Quantity  int         `json:"quantity"`
		UnitPrice json.Number `json:"unit_price"`
		FullUnit  json.Number `json:"full_unit_price"`
	} `json:"order_items"`
}

// ListOrders lists orders created since the cutoff, paging through results
func (c *MercadoLivreClient) ListOrders(ctx context.Context, accessToken string, since time.Time) ([]integration.MarketplaceOrder, error) {
	limit := c.pageSize
	if limit <= 0 {
		limit = 50
	}

	var orders []integration.MarketplaceOrder
	offset := 0
	for {
		path := fmt.Sprintf("/orders/search?order.date_created.from=%s&limit=%d&offset=%d",
			url.QueryEscape(since.UTC().Format(time.RFC3339)), limit, offset)

		body, status, err := c.doRequest(ctx, http.MethodGet, path, "", "", accessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, status)
		}
		if status >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, status)
		}

		var page mlOrderSearchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("mercado livre: failed to decode order search: %w", err)
		}

		for i := range page.Results {
			orders = append(orders, convertMLOrder(&page.Results[i]))
		}

		offset += limit
		if offset >= page.Paging.Total || len(page.Results) == 0 {
			break
		}
	}
	return orders, nil
}

func convertMLOrder(o *mlOrder) integration.MarketplaceOrder {
	order := integration.MarketplaceOrder{
		ExternalID:  fmt.Sprintf("%d", o.ID),
		OrderID:     fmt.Sprintf("%d", o.ID),
		GrossAmount: parseAPIDecimal(o.TotalAmount.String()),
		NetAmount:   parseAPIDecimal(o.PaidAmount.String()),
		StoreName:   o.Seller.Nickname,
	}
	if t, err := time.Parse(time.RFC3339, o.DateCreated); err == nil {
		order.Date = t
	}
	if len(o.Payments) > 0 {
		fee := parseAPIDecimal(o.Payments[0].MarketplaceFee.String())
		if !fee.IsZero() {
			order.Commission = &fee
		}
	}
	if cost := parseAPIDecimal(o.Shipping.Cost.String()); !cost.IsZero() {
		order.ShippingCost = &cost
	}
	for _, line := range o.OrderItems {
		unit := parseAPIDecimal(line.UnitPrice.String())
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		order.Items = append(order.Items, integration.MarketplaceOrderItem{
			ChannelSKU: line.Item.SellerSKU,
			Title:      line.Item.Title,
			Quantity:   qty,
			UnitPrice:  unit,
			LineTotal:  unit.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return order
}

// parseAPIDecimal parses a decimal that the API may send as a bare number or
// a quoted string, tolerating empty values
func parseAPIDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c *MercadoLivreClient) doRequest(ctx context.Context, method, path, body, contentType, accessToken string) ([]byte, int, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("mercado livre: failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("mercado livre: failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// Ensure MercadoLivreClient implements MarketplaceClient
var _ integration.MarketplaceClient = (*MercadoLivreClient)(nil)
