package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/wardenhq/warden/internal/setup/config"
	"github.com/wardenhq/warden/pkg/utils"
	"go.uber.org/zap"
)

// errNotFound marks 404 responses so callers can tell missing resources from
// transport failures.
var errNotFound = fmt.Errorf("%w: not found", ErrRequestFailed)

// HTTPClient implements Client against the platform's JSON API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a platform client from configuration.
func NewHTTPClient(cfg *config.Platform, logger *zap.Logger) *HTTPClient {
	timeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("platform"),
	}
}

// do performs a request with retries and decodes the JSON response into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, out any) error {
	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s %s", errNotFound, method, path))
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("%w: %s %s: %s: %s",
				ErrRequestFailed, method, path, resp.Status, string(body))

			// Client errors are final; only server/transport failures retry.
			if resp.StatusCode < http.StatusInternalServerError {
				return struct{}{}, backoff.Permanent(err)
			}

			return struct{}{}, err
		}

		if out != nil {
			if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out); err != nil {
				return struct{}{}, fmt.Errorf("failed to decode response: %w", err)
			}
		}

		return struct{}{}, nil
	}, utils.GetPlatformRetryOptions())

	return err
}

// IsMember reports whether the user currently belongs to the group.
func (c *HTTPClient) IsMember(ctx context.Context, userID, groupID uint64) (bool, error) {
	var result struct {
		Member bool `json:"member"`
	}

	path := fmt.Sprintf("/groups/%d/members/%d", groupID, userID)
	if err := c.do(ctx, http.MethodGet, path, &result); err != nil {
		return false, err
	}

	return result.Member, nil
}

// SetManagerRole sets or removes the user's manager role in the group.
func (c *HTTPClient) SetManagerRole(ctx context.Context, groupID, userID uint64, role string) error {
	if role == RoleNone {
		path := fmt.Sprintf("/groups/%d/managers/%d", groupID, userID)
		return c.do(ctx, http.MethodDelete, path, nil)
	}

	path := fmt.Sprintf("/groups/%d/managers/%d?role=%s", groupID, userID, role)

	return c.do(ctx, http.MethodPut, path, nil)
}

// BanInGroup bans the user from the group.
func (c *HTTPClient) BanInGroup(ctx context.Context, userID, groupID uint64) error {
	path := fmt.Sprintf("/groups/%d/bans/%d", groupID, userID)
	return c.do(ctx, http.MethodPut, path, nil)
}

// UnbanInGroup lifts the user's ban in the group.
func (c *HTTPClient) UnbanInGroup(ctx context.Context, userID, groupID uint64) error {
	path := fmt.Sprintf("/groups/%d/bans/%d", groupID, userID)
	return c.do(ctx, http.MethodDelete, path, nil)
}

// GetProfile fetches the user's public profile.
func (c *HTTPClient) GetProfile(ctx context.Context, userID uint64) (*Profile, error) {
	var profile Profile

	path := fmt.Sprintf("/users/%d/profile", userID)
	if err := c.do(ctx, http.MethodGet, path, &profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

// GetWallPostCount returns the number of posts on the user's wall.
func (c *HTTPClient) GetWallPostCount(ctx context.Context, userID uint64) (int, error) {
	var result struct {
		Count int `json:"count"`
	}

	path := fmt.Sprintf("/users/%d/wall/count", userID)
	if err := c.do(ctx, http.MethodGet, path, &result); err != nil {
		return 0, err
	}

	return result.Count, nil
}

// GetRegistrationDate returns when the account was registered.
func (c *HTTPClient) GetRegistrationDate(ctx context.Context, userID uint64) (time.Time, error) {
	var result struct {
		RegisteredAt *time.Time `json:"registeredAt"`
	}

	path := fmt.Sprintf("/users/%d/registration", userID)

	err := c.do(ctx, http.MethodGet, path, &result)
	if err != nil {
		// The platform omits registration dates for legacy accounts.
		if errors.Is(err, errNotFound) {
			return time.Time{}, ErrNoRegistrationDate
		}

		return time.Time{}, err
	}

	if result.RegisteredAt == nil {
		return time.Time{}, ErrNoRegistrationDate
	}

	return *result.RegisteredAt, nil
}

// GetGroupData fetches membership data for the given groups.
func (c *HTTPClient) GetGroupData(ctx context.Context, groupIDs []uint64) (map[uint64]*GroupData, error) {
	result := make(map[uint64]*GroupData, len(groupIDs))

	for _, groupID := range groupIDs {
		var data GroupData

		path := fmt.Sprintf("/groups/%d", groupID)
		if err := c.do(ctx, http.MethodGet, path, &data); err != nil {
			return nil, err
		}

		data.GroupID = groupID
		result[groupID] = &data
	}

	return result, nil
}
