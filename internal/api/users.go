package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// ErrMissingCredentials is returned by Login before any request is made.
var ErrMissingCredentials = errors.New("Please fill in all fields")

const (
	defaultRegisterMessage = "Registration successful! Please login."
	loginFailedMessage     = "Login failed"
)

type Address struct {
	HouseBuildingNumber string `json:"house_building_number"`
	StreetName          string `json:"street_name"`
	SubdivisionVillage  string `json:"subdivision_village"`
	Barangay            string `json:"barangay"`
	CityMunicipality    string `json:"city_municipality"`
	Province            string `json:"province"`
	Region              string `json:"region"`
	PostalCode          string `json:"postal_code"`
}

type Role struct {
	AccountRole string `json:"account_role"`
	AppointedAt string `json:"appointed_at"`
}

// Account is the account representation returned by register, login and check-session.
type Account struct {
	ID          int64    `json:"id"`
	Lastname    string   `json:"lastname"`
	Firstname   string   `json:"firstname"`
	Middlename  string   `json:"middlename"`
	Email       string   `json:"email"`
	DateOfBirth string   `json:"date_of_birth"`
	Gender      string   `json:"gender"`
	Username    string   `json:"username"`
	IsActive    bool     `json:"is_active"`
	IsVerified  bool     `json:"is_verified"`
	LastLogin   string   `json:"last_login"`
	Address     *Address `json:"address"`
	Roles       []Role   `json:"roles"`
}

// RoleNames lists the account's role identifiers.
func (a *Account) RoleNames() []string {
	return lo.Map(a.Roles, func(r Role, _ int) string { return r.AccountRole })
}

// FullName joins first, middle and last names.
func (a *Account) FullName() string {
	return strings.Join(lo.Compact([]string{a.Firstname, a.Middlename, a.Lastname}), " ")
}

type accountEnvelope struct {
	Message       string   `json:"message"`
	Account       *Account `json:"account"`
	Authenticated *bool    `json:"authenticated"`
}

// RegisterResult is a successful registration.
type RegisterResult struct {
	Message string
	Account *Account
}

// Register posts a registration form. Any JSON-encodable payload is accepted.
// Rejections come back as *FieldErrors, network failures as *TransportError.
func (c *Client) Register(ctx context.Context, payload any) (*RegisterResult, error) {
	res, err := c.do(ctx, http.MethodPost, c.url("/users/register/"), payload)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, errorFromResponse(res)
	}

	result := &RegisterResult{Message: defaultRegisterMessage}
	var envelope accountEnvelope
	if len(res.body) > 0 && json.Unmarshal(res.body, &envelope) == nil {
		result.Account = envelope.Account
		if envelope.Message != "" {
			result.Message = envelope.Message
		}
	}
	return result, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and stores the session cookie in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) (*Account, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	res, err := c.do(ctx, http.MethodPost, c.url("/users/login/"), loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		err := errorFromResponse(res)
		if res.status < 400 || res.status >= 500 {
			return nil, err
		}

		// Every 4xx is a rejected login, whether or not its body named a field.
		rejected := &LoginError{Message: loginFailedMessage}
		var fe *FieldErrors
		if errors.As(err, &fe) {
			rejected.Fields = fe
			if message, ok := fe.First("username", "password", "account"); ok {
				rejected.Message = message
			}
		}
		return nil, rejected
	}

	var envelope accountEnvelope
	if err := json.Unmarshal(res.body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	if envelope.Account == nil {
		return nil, fmt.Errorf("login response has no account")
	}
	return envelope.Account, nil
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	res, err := c.do(ctx, http.MethodPost, c.url("/users/logout/"), struct{}{})
	if err != nil {
		return err
	}
	if !res.ok() {
		return errorFromResponse(res)
	}
	return nil
}

// CheckSession reports whether the client's session cookie is still valid.
// A 401 is not an error: it returns (nil, false, nil).
func (c *Client) CheckSession(ctx context.Context) (*Account, bool, error) {
	res, err := c.do(ctx, http.MethodGet, c.url("/users/check-session/"), nil)
	if err != nil {
		return nil, false, err
	}
	if res.status == http.StatusUnauthorized {
		return nil, false, nil
	}
	if !res.ok() {
		return nil, false, errorFromResponse(res)
	}

	var envelope accountEnvelope
	if err := json.Unmarshal(res.body, &envelope); err != nil {
		return nil, false, fmt.Errorf("decoding session response: %w", err)
	}
	authenticated := envelope.Authenticated == nil || *envelope.Authenticated
	return envelope.Account, authenticated && envelope.Account != nil, nil
}
