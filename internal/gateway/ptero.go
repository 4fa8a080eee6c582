// Package gateway – game server panel operations (Pterodactyl client API).
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Servers lists the game servers the credential can access.
func (c *Client) Servers(ctx context.Context, apiKey string) ([]Server, error) {
	data, err := c.do(ctx, ServicePtero, http.MethodGet, c.pteroURL+"/client", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[listEnvelope](data)
	if err != nil {
		return nil, err
	}
	if env.Object != "list" {
		return nil, fmt.Errorf("%w: unexpected envelope %q", ErrUnavailable, env.Object)
	}
	out := make([]Server, 0, len(env.Data))
	for _, e := range env.Data {
		out = append(out, e.Attributes)
	}
	return out, nil
}

// ServerDetails fetches one server's configuration and status. Always a
// fresh call: the management view is never served from cache.
func (c *Client) ServerDetails(ctx context.Context, apiKey, serverID string) (*Server, error) {
	data, err := c.do(ctx, ServicePtero, http.MethodGet, c.serverURL(serverID), apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[serverEnvelope](data)
	if err != nil {
		return nil, err
	}
	return &env.Attributes, nil
}

// ServerResources fetches one server's live usage snapshot.
func (c *Client) ServerResources(ctx context.Context, apiKey, serverID string) (*Resources, error) {
	data, err := c.do(ctx, ServicePtero, http.MethodGet, c.serverURL(serverID)+"/resources", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[struct {
		Attributes Resources `json:"attributes"`
	}](data)
	if err != nil {
		return nil, err
	}
	return &env.Attributes, nil
}

// PowerAction sends a power signal: start, stop, restart or kill.
func (c *Client) PowerAction(ctx context.Context, apiKey, serverID, signal string) error {
	body := map[string]string{"signal": signal}
	_, err := c.do(ctx, ServicePtero, http.MethodPost, c.serverURL(serverID)+"/power", apiKey, body, nil)
	return err
}

// SendCommand runs one console command on the server. Fire-and-forget: the
// panel acknowledges receipt, not execution.
func (c *Client) SendCommand(ctx context.Context, apiKey, serverID, command string) error {
	body := map[string]string{"command": command}
	_, err := c.do(ctx, ServicePtero, http.MethodPost, c.serverURL(serverID)+"/command", apiKey, body, nil)
	return err
}

// ServerLogs fetches recent console output lines.
func (c *Client) ServerLogs(ctx context.Context, apiKey, serverID string) ([]string, error) {
	data, err := c.do(ctx, ServicePtero, http.MethodGet, c.serverURL(serverID)+"/logs", apiKey, nil, nil)
	if err != nil {
		return nil, err
	}
	env, err := decode[logsEnvelope](data)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) serverURL(serverID string) string {
	return c.pteroURL + "/client/servers/" + url.PathEscape(serverID)
}
