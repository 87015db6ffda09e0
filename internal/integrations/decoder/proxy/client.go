// Package proxy: клиент бэкенд-эндпоинта POST /decode-vin (bearer-авторизация).
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpc.Timeout = d
	}
	return c
}

func (c *Client) Name() string { return "proxy" }

type reqBody struct {
	VIN string `json:"vin"`
}

// Decode ходит в прокси с токеном пользователя.
// Ответ valid=false с failureKind=network означает, что прокси сам не достучался до реестра:
// это считается отказом прокси (ErrUpstreamUnavailable), чтобы клиент попробовал реестр напрямую.
func (c *Client) Decode(ctx context.Context, vin, token string) (models.VehicleAttributes, error) {
	u, err := url.Parse(c.baseURL + "/decode-vin")
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "parse base url")
	}

	body, err := json.Marshal(reqBody{VIN: vin})
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.VehicleAttributes{}, &decoder.HTTPStatusError{Provider: c.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var rec models.VehicleRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return models.VehicleAttributes{}, errors.Wrap(err, "decode")
	}
	if !rec.Valid && rec.FailureKind == models.FailureNetwork {
		return models.VehicleAttributes{}, errors.Wrap(decoder.ErrUpstreamUnavailable, rec.ErrorText())
	}
	return rec.VehicleAttributes, nil
}

// Bind привязывает токен и даёт decoder.Provider.
func (c *Client) Bind(token string) decoder.Provider {
	return bound{c: c, token: token}
}

type bound struct {
	c     *Client
	token string
}

func (b bound) Name() string { return b.c.Name() }

func (b bound) Decode(ctx context.Context, vin string) (models.VehicleAttributes, error) {
	return b.c.Decode(ctx, vin, b.token)
}
