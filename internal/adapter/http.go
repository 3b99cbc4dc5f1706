package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/clinic-keeper/internal/config"
	"github.com/MKhiriev/clinic-keeper/internal/logger"
	"github.com/MKhiriev/clinic-keeper/internal/utils"
	"github.com/MKhiriev/clinic-keeper/models"
)

const (
	loginPath          = "/api/auth/login"
	refreshPath        = "/api/auth/refresh"
	reservationsPath   = "/api/reservations/"
	securityEventsPath = "/api/security/events"
)

// HTTPServerAdapter is the resty implementation of [ServerAdapter].
type HTTPServerAdapter struct {
	client *utils.HTTPClient

	mu          sync.RWMutex
	tokenSource TokenSource

	logger *logger.Logger
}

// NewHTTPServerAdapter constructs the HTTP/REST [ServerAdapter]. The base URL
// comes from adapterCfg.HTTPAddress; a missing scheme defaults to http.
func NewHTTPServerAdapter(adapterCfg config.ClientAdapter, appCfg config.ClientApp, log *logger.Logger) (*HTTPServerAdapter, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	return &HTTPServerAdapter{
		client: utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout, appCfg.UserAgent),
		logger: log.WithComponent("adapter"),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetTokenSource installs the source of bearer tokens. It is set after
// construction because the token manager itself depends on the adapter.
func (h *HTTPServerAdapter) SetTokenSource(src TokenSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokenSource = src
}

func (h *HTTPServerAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)

	h.mu.RLock()
	src := h.tokenSource
	h.mu.RUnlock()

	if src != nil {
		if token, ok := src.AccessToken(ctx); ok && token != "" {
			req.SetAuthToken(token)
		}
	}
	return req
}

// Login implements [ServerAdapter]. It POSTs creds to /api/auth/login.
func (h *HTTPServerAdapter) Login(ctx context.Context, creds models.Credentials) (models.TokenPair, error) {
	var pair models.TokenPair

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(creds).
		SetResult(&pair).
		Post(loginPath)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("login request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.TokenPair{}, err
	}

	return completePair(pair)
}

// RefreshTokens implements [ServerAdapter]. It POSTs to /api/auth/refresh
// with the refresh token as the bearer credential and echoes it in the body
// for servers that read it from there.
func (h *HTTPServerAdapter) RefreshTokens(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair

	resp, err := h.client.R().
		SetContext(ctx).
		SetAuthToken(refreshToken).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"refresh": refreshToken}).
		SetResult(&pair).
		Post(refreshPath)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("refresh request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.TokenPair{}, err
	}

	if pair.RefreshToken == "" {
		// servers without rotation return only a new access token
		pair.RefreshToken = refreshToken
	}
	return completePair(pair)
}

// completePair validates a token pair and fills what can be derived from the
// access token itself.
func completePair(pair models.TokenPair) (models.TokenPair, error) {
	if pair.AccessToken == "" {
		return models.TokenPair{}, fmt.Errorf("%w: missing access token", ErrMalformedResponse)
	}

	if pair.UserID == "" {
		userID, err := utils.ParseUserIDFromJWT(pair.AccessToken)
		if err != nil {
			return models.TokenPair{}, fmt.Errorf("%w: parse user id: %w", ErrMalformedResponse, err)
		}
		pair.UserID = userID
	}

	if pair.ExpiresIn <= 0 {
		exp, err := utils.ParseExpiryFromJWT(pair.AccessToken)
		if err != nil {
			return models.TokenPair{}, fmt.Errorf("%w: parse expiry: %w", ErrMalformedResponse, err)
		}
		pair.ExpiresIn = int64(time.Until(exp).Seconds())
	}

	return pair, nil
}

// ListReservations implements [ServerAdapter]. It accepts either a bare JSON
// array or a paginated object carrying the array under "results".
func (h *HTTPServerAdapter) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	resp, err := h.authedRequest(ctx).Get(reservationsPath)
	if err != nil {
		return nil, fmt.Errorf("list reservations request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	return decodeReservations(resp.Body())
}

func decodeReservations(body []byte) ([]models.Reservation, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []models.Reservation{}, nil
	}

	var items []models.Reservation
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: decode reservations: %w", ErrMalformedResponse, err)
		}
		return items, nil
	}

	var page struct {
		Results []models.Reservation `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: decode reservations page: %w", ErrMalformedResponse, err)
	}
	if page.Results == nil {
		page.Results = []models.Reservation{}
	}
	return page.Results, nil
}

// CreateReservation implements [ServerAdapter]. It POSTs the request to
// /api/reservations/ and returns the created record.
func (h *HTTPServerAdapter) CreateReservation(ctx context.Context, req models.ManualReservationRequest) (models.Reservation, error) {
	var created models.Reservation

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&created).
		Post(reservationsPath)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("create reservation request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Reservation{}, err
	}
	if created.ID == 0 {
		return models.Reservation{}, fmt.Errorf("%w: created reservation has no id", ErrMalformedResponse)
	}

	return created, nil
}

// SendSecurityEvent implements [ServerAdapter]. It POSTs the event to
// /api/security/events.
func (h *HTTPServerAdapter) SendSecurityEvent(ctx context.Context, event models.SecurityEvent) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(securityEventsPath)
	if err != nil {
		return fmt.Errorf("send security event request: %w", err)
	}

	return mapHTTPError(resp)
}
