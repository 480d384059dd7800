package dashboard

import (
	"net/http"

	"github.com/pathakanu/noteminder/internal/errs"
)

type magicLinkRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type sessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (d *Dashboard) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := d.session.Current(); !ok {
			d.writeError(w, r, errs.ErrNotSignedIn)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (d *Dashboard) requestMagicLink(r *http.Request) (any, int, error) {
	var req magicLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, 0, err
	}
	if err := d.session.RequestMagicLink(r.Context(), req.Email); err != nil {
		return nil, 0, err
	}
	return statusResponse{Status: "Check your email for the login link!"}, http.StatusAccepted, nil
}

func (d *Dashboard) verify(r *http.Request) (any, int, error) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, 0, err
	}
	user, err := d.session.Verify(r.Context(), req.Email, req.Token)
	if err != nil {
		return nil, 0, err
	}
	return user, http.StatusOK, nil
}

func (d *Dashboard) adoptSession(r *http.Request) (any, int, error) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, 0, err
	}
	user, err := d.session.Adopt(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		return nil, 0, err
	}
	return user, http.StatusOK, nil
}

func (d *Dashboard) signOut(r *http.Request) (any, int, error) {
	d.session.SignOut(r.Context())
	return nil, http.StatusNoContent, nil
}

func (d *Dashboard) me(*http.Request) (any, int, error) {
	user, ok := d.session.Current()
	if !ok {
		return nil, 0, errs.ErrNotSignedIn
	}
	return user, http.StatusOK, nil
}
