// Package client talks to a running crop recommender server over its JSON API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crop-recommender/internal/features"
	"crop-recommender/internal/ml"
	"crop-recommender/internal/recommend"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type errorResp struct {
	Error string `json:"error"`
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// States lists the known states.
func (c *Client) States(ctx context.Context) ([]string, error) {
	var out struct {
		States []string `json:"states"`
	}
	if err := c.get(ctx, "/api/states", nil, &out); err != nil {
		return nil, err
	}
	return out.States, nil
}

// Districts lists the districts of state.
func (c *Client) Districts(ctx context.Context, state string) ([]string, error) {
	var out struct {
		Districts []string `json:"districts"`
	}
	if err := c.get(ctx, "/api/states/"+url.PathEscape(state)+"/districts", nil, &out); err != nil {
		return nil, err
	}
	return out.Districts, nil
}

// Recommend requests a recommendation. A region the server does not know yields an error
// wrapping features.ErrRegionNotFound.
func (c *Client) Recommend(ctx context.Context, state, district string) (recommend.Recommendation, error) {
	var rec recommend.Recommendation
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"state": state, "district": district}).
		SetResult(&rec).
		SetError(&errorResp{}).
		Post(c.base + "/api/recommendations")
	if err != nil {
		return rec, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return rec, fmt.Errorf("%s/%s: %w", state, district, features.ErrRegionNotFound)
	}
	if err := apiError(resp); err != nil {
		return rec, err
	}
	return rec, nil
}

// History returns up to limit recent recommendations, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]recommend.Recommendation, error) {
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var out struct {
		Recommendations []recommend.Recommendation `json:"recommendations"`
	}
	if err := c.get(ctx, "/api/recommendations", params, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// Models describes the server's ensemble.
func (c *Client) Models(ctx context.Context) ([]ml.ModelInfo, error) {
	var out struct {
		Models []ml.ModelInfo `json:"models"`
	}
	if err := c.get(ctx, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result interface{}) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		SetError(&errorResp{}).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return apiError(resp)
}

func apiError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	msg := strings.TrimSpace(resp.String())
	if e, ok := resp.Error().(*errorResp); ok && e.Error != "" {
		msg = e.Error
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
