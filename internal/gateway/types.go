// Package gateway – upstream response shapes.
//
// The billing panel wraps every answer in a {success, message, data}
// envelope; the game server panel uses Pterodactyl-style {object, data} and
// {attributes} envelopes. Both are parsed here so feature modules only ever
// see typed results.
package gateway

import "encoding/json"

// FlexID is an identifier that upstream may serialize as a JSON number or a
// string. Button callbacks always carry it as text, so it normalizes to a
// string.
type FlexID string

// UnmarshalJSON accepts both "42" and 42.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Result is the generic billing panel envelope for operations whose payload
// the bot does not inspect (ticket replies, status changes).
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResult is the answer to a credential login. The panel has shipped the
// credential under both api_key and token across versions, so both are
// accepted.
type LoginResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	APIKey  string `json:"api_key"`
	Token   string `json:"token"`
}

// Credential returns whichever credential field the panel populated ("" when
// neither was returned).
func (r LoginResult) Credential() string {
	if r.APIKey != "" {
		return r.APIKey
	}
	return r.Token
}

// Account is the billing panel's view of the linked account.
type Account struct {
	ID        FlexID `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// AccountResult wraps Account.
type AccountResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    Account `json:"data"`
}

// BalanceResult carries the current wallet balance.
type BalanceResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Balance float64 `json:"balance"`
	} `json:"data"`
}

// CouponResult is the answer to a coupon redemption.
type CouponResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Amount     float64 `json:"amount"`
		NewBalance float64 `json:"new_balance"`
	} `json:"data"`
}

// Product is one store item.
type Product struct {
	ID          FlexID  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// ProductsResult wraps the store catalog.
type ProductsResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    []Product `json:"data"`
}

// PurchaseResult is the answer to a purchase. ServerID is set when the
// purchase provisioned a game server.
type PurchaseResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ServerID string `json:"server_id"`
	} `json:"data"`
}

// Ticket is one support ticket as listed by the billing panel.
type Ticket struct {
	ID        FlexID `json:"id"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TicketsResult wraps the user's ticket list.
type TicketsResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    []Ticket `json:"data"`
}

// CreateTicketResult is the answer to ticket creation.
type CreateTicketResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ID FlexID `json:"id"`
	} `json:"data"`
}

// ReferralResult carries the referral program stats.
type ReferralResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ReferralLink     string  `json:"referral_link"`
		ReferralCount    int     `json:"referral_count"`
		ReferralEarnings float64 `json:"referral_earnings"`
	} `json:"data"`
}

// Limits are a game server's configured resource caps.
type Limits struct {
	Memory int64 `json:"memory"` // MB
	CPU    int64 `json:"cpu"`    // percent
	Disk   int64 `json:"disk"`   // MB
}

// Server is one game server as described by the server panel.
type Server struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Limits     Limits `json:"limits"`
}

// Resources is a game server's live usage snapshot.
type Resources struct {
	MemoryBytes int64   `json:"memory_bytes"`
	CPUAbsolute float64 `json:"cpu_absolute"`
	DiskBytes   int64   `json:"disk_bytes"`
}

// MemoryMB returns memory usage in megabytes.
func (r Resources) MemoryMB() float64 { return float64(r.MemoryBytes) / (1024 * 1024) }

// DiskMB returns disk usage in megabytes.
func (r Resources) DiskMB() float64 { return float64(r.DiskBytes) / (1024 * 1024) }

// serverEnvelope and listEnvelope mirror the Pterodactyl wire format.
type serverEnvelope struct {
	Attributes Server `json:"attributes"`
}

type listEnvelope struct {
	Object string           `json:"object"`
	Data   []serverEnvelope `json:"data"`
}

type logsEnvelope struct {
	Data []string `json:"data"`
}
