// Package gateway – billing panel operations.
//
// Each method is a typed wrapper over the generic request primitive with a
// fixed path template. Business failures come back as Success=false results;
// only transport-class failures produce an error (always ErrUnavailable).
package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Login exchanges email/password for an API credential.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	data, err := c.do(ctx, ServicePanel, http.MethodPost, c.panelURL+"/auth/login", "", body, nil)
	if err != nil {
		return nil, err
	}
	return decode[LoginResult](data)
}

// UserInfo fetches the linked account's profile, validating the credential
// as a side effect (used by the API-key login path).
func (c *Client) UserInfo(ctx context.Context, apiKey string) (*AccountResult, error) {
	data, err := c.do(ctx, ServicePanel, http.MethodGet, c.panelURL+"/user", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[AccountResult](data)
}

// Balance fetches the current wallet balance.
func (c *Client) Balance(ctx context.Context, apiKey string) (*BalanceResult, error) {
	data, err := c.do(ctx, ServicePanel, http.MethodGet, c.panelURL+"/user/balance", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[BalanceResult](data)
}

// RedeemCoupon redeems a top-up coupon code.
func (c *Client) RedeemCoupon(ctx context.Context, apiKey, code string) (*CouponResult, error) {
	body := map[string]string{"coupon_code": code}
	data, err := c.do(ctx, ServicePanel, http.MethodPost, c.panelURL+"/user/redeem-coupon", apiKey, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[CouponResult](data)
}

// Products fetches the public store catalog.
func (c *Client) Products(ctx context.Context) (*ProductsResult, error) {
	data, err := c.do(ctx, ServicePanel, http.MethodGet, c.panelURL+"/products", "", nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[ProductsResult](data)
}

// Purchase buys quantity units of a product.
func (c *Client) Purchase(ctx context.Context, apiKey, productID string, quantity int) (*PurchaseResult, error) {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	data, err := c.do(ctx, ServicePanel, http.MethodPost, c.panelURL+"/user/purchase", apiKey, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[PurchaseResult](data)
}

// Tickets fetches the user's support tickets.
func (c *Client) Tickets(ctx context.Context, apiKey string) (*TicketsResult, error) {
	data, err := c.do(ctx, ServicePanel, http.MethodGet, c.panelURL+"/user/tickets", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[TicketsResult](data)
}

// CreateTicket opens a new support ticket with the given priority
// (high, medium or low).
func (c *Client) CreateTicket(ctx context.Context, apiKey, subject, message, priority string) (*CreateTicketResult, error) {
	body := map[string]string{"subject": subject, "message": message, "priority": priority}
	data, err := c.do(ctx, ServicePanel, http.MethodPost, c.panelURL+"/user/tickets", apiKey, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[CreateTicketResult](data)
}

// ReplyTicket appends a reply to an existing ticket.
func (c *Client) ReplyTicket(ctx context.Context, apiKey, ticketID, message string) (*Result, error) {
	body := map[string]string{"message": message}
	data, err := c.do(ctx, ServicePanel, http.MethodPost, c.panelURL+"/user/tickets/"+url.PathEscape(ticketID)+"/reply", apiKey, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[Result](data)
}

// UpdateTicketStatus closes or reopens a ticket ("closed" / "open").
func (c *Client) UpdateTicketStatus(ctx context.Context, apiKey, ticketID, status string) (*Result, error) {
	body := map[string]string{"status": status}
	data, err := c.do(ctx, ServicePanel, http.MethodPost, c.panelURL+"/user/tickets/"+url.PathEscape(ticketID)+"/status", apiKey, body, nil)
	if err != nil {
		return nil, err
	}
	return decode[Result](data)
}

// ReferralInfo fetches the user's referral link and stats.
func (c *Client) ReferralInfo(ctx context.Context, apiKey string) (*ReferralResult, error) {
	data, err := c.do(ctx, ServicePanel, http.MethodGet, c.panelURL+"/user/referral", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[ReferralResult](data)
}
