package cloudbeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/pkg/config"
)

// ErrUnauthorized signals a 401 from the hotel API; callers retry once after
// a forced token refresh.
var ErrUnauthorized = errors.New("cloudbeds: unauthorized")

// Client is the low-level Cloudbeds HTTP client. It carries no token state;
// callers pass the bearer token per call (the Vault owns token lifecycle).
type Client struct {
	http *http.Client
	cfg  config.CloudbedsConfig
}

func NewClient(cfg config.CloudbedsConfig) *Client {
	return &Client{
		http: &http.Client{Timeout: 15 * time.Second},
		cfg:  cfg,
	}
}

// Reservation is the wire shape of a Cloudbeds reservation record. The list
// endpoint returns abbreviated entries of the same shape.
type Reservation struct {
	ReservationID        string         `json:"reservationID"`
	GuestName            string         `json:"guestName"`
	StartDate            string         `json:"startDate"`
	EndDate              string         `json:"endDate"`
	Status               string         `json:"status"`
	ThirdPartyIdentifier string         `json:"thirdPartyIdentifier"`
	Assigned             []AssignedRoom `json:"assigned"`
}

type AssignedRoom struct {
	RoomName     string `json:"roomName"`
	RoomTypeName string `json:"roomTypeName"`
}

// RoomLabel is the display name for a reservation's room: the first assigned
// room's name, falling back to its room-type name. Empty when nothing is
// assigned yet.
func (r *Reservation) RoomLabel() string {
	if len(r.Assigned) == 0 {
		return ""
	}
	if r.Assigned[0].RoomName != "" {
		return r.Assigned[0].RoomName
	}
	return r.Assigned[0].RoomTypeName
}

type reservationEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    Reservation `json:"data"`
}

type reservationListEnvelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    []Reservation `json:"data"`
}

// AccessKey is one door-lock key record. Integrations disagree on the field
// name for the PIN, so all spellings are tried in order.
type AccessKey struct {
	Pin        string `json:"pin"`
	Code       string `json:"code"`
	AccessCode string `json:"accessCode"`
	PinCode    string `json:"pinCode"`
}

func (k AccessKey) Value() string {
	for _, v := range []string{k.Pin, k.Code, k.AccessCode, k.PinCode} {
		if v != "" {
			return v
		}
	}
	return ""
}

type keysEnvelope struct {
	Data []AccessKey `json:"data"`
	Keys []AccessKey `json:"keys"`
}

type reservationQuery struct {
	PropertyID    string `url:"propertyID"`
	ReservationID string `url:"reservationID"`
}

type listQuery struct {
	PropertyID string `url:"propertyID"`
}

type keysQuery struct {
	ReservationID string `url:"reservationId"`
}

func (c *Client) getJSON(ctx context.Context, token, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create cloudbeds request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("%w: status=%d body=%s", domain.ErrProvider, res.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProvider, err)
	}
	return nil
}

// GetReservation fetches a reservation by its native Cloudbeds ID.
func (c *Client) GetReservation(ctx context.Context, token, reservationID string) (*Reservation, error) {
	params, err := query.Values(reservationQuery{
		PropertyID:    c.cfg.PropertyID,
		ReservationID: reservationID,
	})
	if err != nil {
		return nil, err
	}

	var env reservationEnvelope
	if err := c.getJSON(ctx, token, c.cfg.APIBase+"/getReservation?"+params.Encode(), &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrReservationNotFound, env.Message)
	}
	return &env.Data, nil
}

// ListReservations fetches the property's reservation list (abbreviated
// records).
func (c *Client) ListReservations(ctx context.Context, token string) ([]Reservation, error) {
	params, err := query.Values(listQuery{PropertyID: c.cfg.PropertyID})
	if err != nil {
		return nil, err
	}

	var env reservationListEnvelope
	if err := c.getJSON(ctx, token, c.cfg.APIBase+"/getReservations?"+params.Encode(), &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: getReservations: %s", domain.ErrProvider, env.Message)
	}
	return env.Data, nil
}

// GetAccessKeys fetches door-lock keys for a reservation from the v2 API.
func (c *Client) GetAccessKeys(ctx context.Context, token, reservationID string) ([]AccessKey, error) {
	params, err := query.Values(keysQuery{ReservationID: reservationID})
	if err != nil {
		return nil, err
	}

	var env keysEnvelope
	if err := c.getJSON(ctx, token, c.cfg.KeysAPIBase+"/keys?"+params.Encode(), &env); err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		return env.Data, nil
	}
	return env.Keys, nil
}

// Ping verifies the credential works against a cheap read endpoint.
func (c *Client) Ping(ctx context.Context, token string) error {
	var out json.RawMessage
	return c.getJSON(ctx, token, c.cfg.APIBase+"/getHotels", &out)
}

// AuthorizeURL builds the OAuth authorize redirect target.
func (c *Client) AuthorizeURL(state string) string {
	v := url.Values{}
	v.Set("client_id", c.cfg.ClientID)
	v.Set("redirect_uri", c.cfg.RedirectURI)
	v.Set("scope", "reservations.read")
	v.Set("state", state)
	return c.cfg.AuthURL + "?" + v.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

func (c *Client) tokenExchange(ctx context.Context, form url.Values) (*domain.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}
	defer res.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 || tr.AccessToken == "" {
		detail := tr.Message
		if detail == "" {
			detail = tr.Error
		}
		return nil, fmt.Errorf("token exchange failed: status=%d %s", res.StatusCode, detail)
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &domain.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tokenType,
		ExpiresIn:    tr.ExpiresIn,
		Scope:        tr.Scope,
	}, nil
}

// ExchangeCode trades an authorization code for the initial credential.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*domain.Credential, error) {
	return c.tokenExchange(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
		"code":          {code},
	})
}

// Refresh trades a refresh token for a new credential.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	return c.tokenExchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
		"refresh_token": {refreshToken},
	})
}
