package cartservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
)

// CodeRestaurantConflict is the structured error code for a cross-restaurant add.
const CodeRestaurantConflict = "restaurant_conflict"

// APIError is a non-2xx response from the cart service.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("cart service returned %d (%s): %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("cart service returned %d: %s", e.StatusCode, e.Detail)
}

// Is maps responses onto the domain sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case cart.ErrCartNotFound:
		return e.StatusCode == http.StatusNotFound
	case cart.ErrRestaurantConflict:
		return e.isRestaurantConflict()
	}
	return false
}

// isRestaurantConflict prefers the structured code and falls back to the
// detail text the service sends with a 400.
func (e *APIError) isRestaurantConflict() bool {
	if e.Code == CodeRestaurantConflict {
		return true
	}
	return (e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusConflict) &&
		strings.Contains(strings.ToLower(e.Detail), "different restaurant")
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends body as JSON and decodes a 2xx response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type errorBody struct {
	Code   string          `json:"code"`
	Detail json.RawMessage `json:"detail"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) != nil {
		apiErr.Detail = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Code = body.Code

	// detail is a string for handled errors and a list for validation errors.
	var detail string
	if json.Unmarshal(body.Detail, &detail) == nil {
		apiErr.Detail = detail
	} else {
		apiErr.Detail = string(body.Detail)
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
