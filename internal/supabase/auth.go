package supabase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/supabase-community/gotrue-go/types"
)

// statusPrefix starts every gotrue-go error for a non-2xx answer.
const statusPrefix = "response status code "

// verifyEmail is the verification type of an emailed one-time token.
const verifyEmail types.VerificationType = "email"

// User is the authenticated account as reported by the auth provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSession is the token pair returned after a successful verification.
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func userFrom(u types.User) User {
	return User{ID: u.ID.String(), Email: u.Email}
}

func sessionFrom(s types.Session) *AuthSession {
	return &AuthSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
		User:         userFrom(s.User),
	}
}

// SendMagicLink asks the provider to email a sign-in link to email.
// Success only means the email was accepted for delivery.
func (c *Client) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	rt := &boundTransport{}
	if redirectTo != "" {
		rt.query = map[string]string{"redirect_to": redirectTo}
	}
	return c.call(ctx, "auth_otp", rt, func() error {
		return c.auth("", rt).OTP(types.OTPRequest{Email: email, CreateUser: true})
	})
}

// VerifyOTP exchanges the one-time token from the email for a session.
func (c *Client) VerifyOTP(ctx context.Context, email, token string) (*AuthSession, error) {
	rt := &boundTransport{}
	var session *AuthSession
	err := c.call(ctx, "auth_verify", rt, func() error {
		resp, err := c.auth("", rt).VerifyForUser(types.VerifyForUserRequest{
			Type:       verifyEmail,
			Token:      token,
			Email:      email,
			RedirectTo: c.baseURL,
		})
		if err != nil {
			s, ok := verifiedSession(err)
			if !ok {
				return err
			}
			session = s
			return nil
		}
		session = sessionFrom(resp.Session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// verifiedSession recovers the session from a 200 answer to POST /verify.
// gotrue-go only accepts 303 there and reports the 200 body as an error.
func verifiedSession(err error) (*AuthSession, bool) {
	body, ok := strings.CutPrefix(err.Error(), statusPrefix+"200: ")
	if !ok {
		return nil, false
	}
	var s types.Session
	if json.Unmarshal([]byte(body), &s) != nil || s.AccessToken == "" {
		return nil, false
	}
	return sessionFrom(s), true
}

// GetUser returns the account that owns accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	rt := &boundTransport{}
	var user User
	err := c.call(ctx, "auth_user", rt, func() error {
		resp, err := c.auth(accessToken, rt).GetUser()
		if err != nil {
			return err
		}
		user = userFrom(resp.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes accessToken at the provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	rt := &boundTransport{}
	return c.call(ctx, "auth_logout", rt, func() error {
		return c.auth(accessToken, rt).Logout()
	})
}

// AuthHealth checks that the auth service answers.
func (c *Client) AuthHealth(ctx context.Context) error {
	rt := &boundTransport{}
	return c.call(ctx, "auth_health", rt, func() error {
		_, err := c.auth("", rt).HealthCheck()
		return err
	})
}
