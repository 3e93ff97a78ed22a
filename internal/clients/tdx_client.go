// internal/clients/tdx_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"loanerdesk/internal/loaner"
)

// TDXClient talks to a TeamDynamix instance over its web API. It implements
// loaner.RemoteService. The client authenticates with a bearer token owned
// by the surrounding service and rate-limits itself below the instance's
// call quota. Id catalogs (statuses, locations, attributes) are fetched once
// and cached for the client's lifetime.
type TDXClient struct {
	baseURL    string
	token      string
	assetApp   string
	ticketApp  string
	noOwnerUID string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu  sync.RWMutex
	ids map[string]map[string]int
}

// Config carries the connection settings for a TeamDynamix instance.
type Config struct {
	BaseURL    string
	Token      string
	AssetApp   string
	TicketApp  string
	NoOwnerUID string
}

// TDX allows 60 calls per minute per IP.
const callsPerMinute = 60

// NewTDXClient creates a client for one TeamDynamix instance.
func NewTDXClient(cfg Config) *TDXClient {
	return &TDXClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		assetApp:   url.PathEscape(cfg.AssetApp),
		ticketApp:  url.PathEscape(cfg.TicketApp),
		noOwnerUID: cfg.NoOwnerUID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/callsPerMinute), callsPerMinute),
		ids:        make(map[string]map[string]int),
	}
}

func (c *TDXClient) SearchPeople(ctx context.Context, query string) ([]loaner.Person, error) {
	var people []loaner.Person
	path := "/api/people/lookup?searchText=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &people); err != nil {
		return nil, err
	}
	return people, nil
}

func (c *TDXClient) GetPerson(ctx context.Context, uid string) (*loaner.Person, error) {
	person := &loaner.Person{}
	if err := c.do(ctx, http.MethodGet, "/api/people/"+url.PathEscape(uid), nil, person); err != nil {
		return nil, err
	}
	return person, nil
}

func (c *TDXClient) SearchAssets(ctx context.Context, tag string) ([]loaner.Device, error) {
	var assets []loaner.Device
	body := map[string]any{"SerialLike": tag}
	path := fmt.Sprintf("/api/%s/assets/search", c.assetApp)
	if err := c.do(ctx, http.MethodPost, path, body, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (c *TDXClient) GetAsset(ctx context.Context, id int) (*loaner.Device, error) {
	device := &loaner.Device{}
	path := fmt.Sprintf("/api/%s/assets/%d", c.assetApp, id)
	if err := c.do(ctx, http.MethodGet, path, nil, device); err != nil {
		return nil, err
	}
	// The instance's no-owner sentinel account means "unowned".
	if device.OwnerUID == c.noOwnerUID {
		device.OwnerUID = ""
	}
	return device, nil
}

func (c *TDXClient) SearchTickets(ctx context.Context, criteria loaner.TicketSearch) ([]loaner.Ticket, error) {
	var tickets []loaner.Ticket
	body := map[string]any{
		"RequestorUids":         []string{criteria.RequesterUID},
		"StatusNames":           criteria.Statuses,
		"Title":                 criteria.Title,
		"ResponsibleGroupNames": []string{criteria.Group},
	}
	path := fmt.Sprintf("/api/%s/tickets/search", c.ticketApp)
	if err := c.do(ctx, http.MethodPost, path, body, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *TDXClient) GetTicket(ctx context.Context, id int) (*loaner.Ticket, error) {
	ticket := &loaner.Ticket{}
	path := fmt.Sprintf("/api/%s/tickets/%d", c.ticketApp, id)
	if err := c.do(ctx, http.MethodGet, path, nil, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (c *TDXClient) TicketAssets(ctx context.Context, ticketID int) ([]loaner.TicketAsset, error) {
	var assets []loaner.TicketAsset
	path := fmt.Sprintf("/api/%s/tickets/%d/assets", c.ticketApp, ticketID)
	if err := c.do(ctx, http.MethodGet, path, nil, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// UpdateAsset writes the full device record back. TeamDynamix has no null
// owner; an empty owner maps to the instance's well-known no-owner account.
func (c *TDXClient) UpdateAsset(ctx context.Context, device *loaner.Device) error {
	payload := *device
	if payload.OwnerUID == "" {
		payload.OwnerUID = c.noOwnerUID
	}
	path := fmt.Sprintf("/api/%s/assets/%d", c.assetApp, device.ID)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *TDXClient) UpdateTicketStatus(ctx context.Context, id int, status, note string) error {
	statusID, err := c.lookupID(ctx, "ticket-statuses", fmt.Sprintf("/api/%s/tickets/statuses", c.ticketApp), status)
	if err != nil {
		return err
	}
	body := map[string]any{
		"NewStatusID": statusID,
		"Comments":    note,
		"IsPrivate":   true,
	}
	path := fmt.Sprintf("/api/%s/tickets/%d/feed", c.ticketApp, id)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *TDXClient) AttachAssetToTicket(ctx context.Context, ticketID, assetID int) error {
	path := fmt.Sprintf("/api/%s/tickets/%d/assets/%d", c.ticketApp, ticketID, assetID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *TDXClient) StatusID(ctx context.Context, name string) (int, error) {
	return c.lookupID(ctx, "asset-statuses", fmt.Sprintf("/api/%s/assets/statuses", c.assetApp), name)
}

func (c *TDXClient) LocationID(ctx context.Context, name string) (int, error) {
	return c.lookupID(ctx, "locations", "/api/locations", name)
}

func (c *TDXClient) AttributeID(ctx context.Context, name string) (int, error) {
	return c.lookupID(ctx, "asset-attributes", "/api/attributes/custom?componentId=Asset", name)
}

// lookupID resolves a catalog name to its id, fetching and caching the
// whole catalog on first use.
func (c *TDXClient) lookupID(ctx context.Context, catalog, path, name string) (int, error) {
	c.mu.RLock()
	byName, ok := c.ids[catalog]
	c.mu.RUnlock()

	if !ok {
		var entries []struct {
			ID   int    `json:"ID"`
			Name string `json:"Name"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
			return 0, fmt.Errorf("fetching %s catalog: %w", catalog, err)
		}
		byName = make(map[string]int, len(entries))
		for _, e := range entries {
			byName[e.Name] = e.ID
		}
		c.mu.Lock()
		c.ids[catalog] = byName
		c.mu.Unlock()
	}

	id, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("no %s entry named %q", catalog, name)
	}
	return id, nil
}

// do issues one authenticated request, honoring the rate limiter, and
// decodes a JSON response into out when out is non-nil.
func (c *TDXClient) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status code: %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
