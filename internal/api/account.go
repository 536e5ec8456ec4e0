package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNotLoggedIn is returned by the account endpoints when the session cookie is missing or expired.
	ErrNotLoggedIn = errors.New("You are not logged in")
	// ErrPasswordMismatch is returned by ChangePassword before any request is made.
	ErrPasswordMismatch = errors.New("Passwords do not match")
	// ErrContactNumberRequired is returned by RegisterMechanic before any request is made.
	ErrContactNumberRequired = errors.New("Contact number is required")
)

const (
	defaultActiveRole        = "client"
	switchRoleFailedMessage  = "Failed to switch role"
	mechanicFailedMessage    = "Failed to register as mechanic"
	passwordFailedMessage    = "Failed to change password"
	profileFailedMessage     = "Failed to load profile"
	defaultMechanicMessage   = "Mechanic profile created successfully!"
	defaultPasswordMessage   = "Password changed successfully"
	defaultSwitchRoleMessage = "Role switched"
)

// RoleLabel is how a role identifier is shown to users.
func RoleLabel(role string) string {
	if role == "shop_owner" {
		return "Shop Owner"
	}
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

type RoleOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// RoleProfile is the per-role part of a profile.
type RoleProfile struct {
	ProfilePhoto  string `json:"profile_photo"`
	ContactNumber string `json:"contact_number"`
	Bio           string `json:"bio"`
}

// Profile is the profile page view of an account. ActiveRole is filled from the session.
type Profile struct {
	ID                 int64                   `json:"id"`
	Username           string                  `json:"username"`
	Email              string                  `json:"email"`
	FullName           string                  `json:"full_name"`
	Firstname          string                  `json:"firstname"`
	Lastname           string                  `json:"lastname"`
	Middlename         string                  `json:"middlename"`
	DateOfBirth        string                  `json:"date_of_birth"`
	Gender             string                  `json:"gender"`
	IsVerified         bool                    `json:"is_verified"`
	UserType           []string                `json:"user_type"`
	AvailableRoles     []RoleOption            `json:"available_roles"`
	CurrentRoleProfile map[string]*RoleProfile `json:"current_role_profile"`
	Address            *Address                `json:"address"`
	ActiveRole         string                  `json:"-"`
}

// Name is the full name, assembled from its parts when the server sent none.
func (p *Profile) Name() string {
	if p.FullName != "" {
		return p.FullName
	}
	return strings.Join(lo.Compact([]string{p.Firstname, p.Middlename, p.Lastname}), " ")
}

// ActiveProfile returns the profile of the active role, if the server sent one.
func (p *Profile) ActiveProfile() (*RoleProfile, bool) {
	rp, ok := p.CurrentRoleProfile[p.ActiveRole]
	return rp, ok && rp != nil
}

// RoleStatus is which roles the account is registered for and which one is active.
type RoleStatus struct {
	IsClient        bool     `json:"is_client"`
	IsMechanic      bool     `json:"is_mechanic"`
	IsShopOwner     bool     `json:"is_shop_owner"`
	ActiveRole      string   `json:"active_role"`
	RegisteredRoles []string `json:"registered_roles"`
}

// Has reports whether the account can switch to role.
func (s *RoleStatus) Has(role string) bool {
	return lo.Contains(s.RegisteredRoles, role)
}

// MechanicApplication is the text part of a mechanic registration. Photos and documents are not sent.
type MechanicApplication struct {
	ContactNumber string `json:"contact_number"`
	Bio           string `json:"bio,omitempty"`
}

type switchRoleRequest struct {
	Role string `json:"role"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type messageEnvelope struct {
	Message string `json:"message"`
}

// rejection classifies a failed account request. 401 and 403 are ErrNotLoggedIn, any other 4xx
// is an *ActionError carrying the server's message (or fallback), and the rest is left as is.
func rejection(res *response, fallback string) error {
	if res.status == http.StatusUnauthorized || res.status == http.StatusForbidden {
		return ErrNotLoggedIn
	}

	err := errorFromResponse(res)
	if res.status < 400 || res.status >= 500 {
		return err
	}

	rejected := &ActionError{Message: fallback}
	var fe *FieldErrors
	if errors.As(err, &fe) {
		rejected.Fields = fe
		if message, ok := fe.First("error", "detail"); ok {
			rejected.Message = message
		} else if text := fe.Error(); text != "" {
			rejected.Message = text
		}
	}
	return rejected
}

// getJSON fetches path from the backend and decodes a successful body into v.
func (c *Client) getJSON(ctx context.Context, path, fallback string, v any) error {
	res, err := c.do(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return err
	}
	if !res.ok() {
		return rejection(res, fallback)
	}
	if err := json.Unmarshal(res.body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// postMessage posts payload to path and returns the server's message, or defaultMessage when it sent none.
func (c *Client) postMessage(ctx context.Context, path string, payload any, fallback, defaultMessage string) (*messageEnvelope, error) {
	res, err := c.do(ctx, http.MethodPost, c.url(path), payload)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, rejection(res, fallback)
	}

	envelope := &messageEnvelope{}
	if len(res.body) > 0 {
		_ = json.Unmarshal(res.body, envelope)
	}
	if envelope.Message == "" {
		envelope.Message = defaultMessage
	}
	return envelope, nil
}

// Profile loads the profile details and the active role of the logged-in account.
// An unreadable active role falls back to client.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var envelope struct {
		Profile *Profile `json:"profile"`
	}
	if err := c.getJSON(ctx, "/users/profile/details/", profileFailedMessage, &envelope); err != nil {
		return nil, err
	}
	if envelope.Profile == nil {
		return nil, fmt.Errorf("profile response has no profile")
	}

	profile := envelope.Profile
	role, err := c.ActiveRole(ctx)
	if err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			return nil, err
		}
		log.WithError(err).Debug("Could not read active role")
	}
	profile.ActiveRole = lo.Ternary(role != "", role, defaultActiveRole)
	return profile, nil
}

// ActiveRole is the role the session is currently acting as.
func (c *Client) ActiveRole(ctx context.Context) (string, error) {
	var envelope struct {
		ActiveRole string `json:"active_role"`
	}
	if err := c.getJSON(ctx, "/users/profile/active-role/", profileFailedMessage, &envelope); err != nil {
		return "", err
	}
	return envelope.ActiveRole, nil
}

// RoleStatus reports the roles the account holds. An unset active role is client.
func (c *Client) RoleStatus(ctx context.Context) (*RoleStatus, error) {
	status := &RoleStatus{}
	if err := c.getJSON(ctx, "/users/profile/role-status/", profileFailedMessage, status); err != nil {
		return nil, err
	}
	if status.ActiveRole == "" {
		status.ActiveRole = defaultActiveRole
	}
	return status, nil
}

// SwitchRole makes role the session's active role and returns the server's confirmation.
func (c *Client) SwitchRole(ctx context.Context, role string) (string, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return "", &ActionError{Message: switchRoleFailedMessage}
	}

	envelope, err := c.postMessage(ctx, "/users/profile/switch-role/", switchRoleRequest{Role: role}, switchRoleFailedMessage, defaultSwitchRoleMessage)
	if err != nil {
		return "", err
	}
	return envelope.Message, nil
}

// RegisterMechanic adds the mechanic role to the logged-in account.
func (c *Client) RegisterMechanic(ctx context.Context, application MechanicApplication) (string, error) {
	application.ContactNumber = strings.TrimSpace(application.ContactNumber)
	application.Bio = strings.TrimSpace(application.Bio)
	if application.ContactNumber == "" {
		return "", ErrContactNumberRequired
	}

	envelope, err := c.postMessage(ctx, "/users/register-mechanic/", application, mechanicFailedMessage, defaultMechanicMessage)
	if err != nil {
		return "", err
	}
	return envelope.Message, nil
}

// ChangePassword replaces the account's password. Strength rules are checked by the server.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword, confirmPassword string) (string, error) {
	if oldPassword == "" || newPassword == "" || confirmPassword == "" {
		return "", ErrMissingCredentials
	}
	if newPassword != confirmPassword {
		return "", ErrPasswordMismatch
	}

	payload := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword, ConfirmPassword: confirmPassword}
	envelope, err := c.postMessage(ctx, "/users/password/change/", payload, passwordFailedMessage, defaultPasswordMessage)
	if err != nil {
		return "", err
	}
	return envelope.Message, nil
}
