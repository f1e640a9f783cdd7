package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
}

// Client is an HTTP Directory backed by the directory service. 5xx
// responses are retried with exponential backoff; 404 maps to
// apperr.ErrNotFound.
type Client struct {
	base string
	http *http.Client
	conf ClientConfig
}

func NewClient(conf ClientConfig) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		base: conf.BaseURL,
		http: &http.Client{Transport: tr, Timeout: conf.Timeout},
		conf: conf,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(apperr.NotFoundf("directory: %s", path))
		case resp.StatusCode >= 500:
			return fmt.Errorf("directory: %s: status %d", path, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("directory: %s: status %d", path, resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.conf.RetryMaxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func (c *Client) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := c.getJSON(ctx, fmt.Sprintf("/api/users/%d", id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	path := "/api/users/by-email?email=" + url.QueryEscape(email)
	if err := c.getJSON(ctx, path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UsersInDepartment(ctx context.Context, departmentID int64) ([]*models.User, error) {
	var users []*models.User
	if err := c.getJSON(ctx, fmt.Sprintf("/api/departments/%d/users", departmentID), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) DepartmentExists(ctx context.Context, departmentID int64) (bool, error) {
	var dept struct {
		ID int64 `json:"id"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("/api/departments/%d", departmentID), &dept)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
