package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/vorell/internal/adapters/http/api"
	"github.com/okian/vorell/internal/domain/model"
)

// Client calls the marketplace API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path, actorID string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set(api.ActorHeader, actorID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Health calls GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// CreateMember signs up a member and returns its id.
func (c *Client) CreateMember(ctx context.Context, nick string, typ model.MemberType) (string, error) {
	var m model.Member
	err := c.do(ctx, http.MethodPost, "/members", "", model.MemberInput{Nick: nick, Type: typ}, &m)
	return m.ID, err
}

// CreateListing lists a watch for ownerID and returns its id.
func (c *Client) CreateListing(ctx context.Context, ownerID string, in model.ListingInput) (string, error) {
	var l model.Listing
	err := c.do(ctx, http.MethodPost, "/listings", ownerID, in, &l)
	return l.ID, err
}

// Like toggles actorID's like on a listing.
func (c *Client) Like(ctx context.Context, actorID, listingID string) error {
	return c.do(ctx, http.MethodPost, "/listings/"+listingID+"/like", actorID, nil, nil)
}

// View reads a listing as actorID, which records a view.
func (c *Client) View(ctx context.Context, actorID, listingID string) error {
	return c.do(ctx, http.MethodGet, "/listings/"+listingID, actorID, nil, nil)
}

// Listing reads a listing anonymously, so no view is recorded.
func (c *Client) Listing(ctx context.Context, listingID string) (model.Listing, error) {
	var l model.Listing
	err := c.do(ctx, http.MethodGet, "/listings/"+listingID, "", nil, &l)
	return l, err
}

// FavoritesTotal returns how many IN_STOCK listings actorID likes.
func (c *Client) FavoritesTotal(ctx context.Context, actorID string) (int64, error) {
	var page model.Listings
	err := c.do(ctx, http.MethodGet, "/me/favorites?page=1&limit=1", actorID, nil, &page)
	return page.Total, err
}
