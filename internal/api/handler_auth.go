package api

import (
	"net/http"

	"github.com/steampulse/steampulse/internal/auth"
)

type loginRequest struct {
	ClientID string `json:"client_id"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleLogin returns a handler for POST /auth/login. The signed-request
// gate has already authenticated the caller; the body's client_id must
// still match the signature header so a token is only ever issued to the
// client that signed the request.
func HandleLogin(sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		if req.ClientID == "" {
			writeBadRequest(w, "client_id: must be non-empty")
			return
		}
		if req.ClientID != r.Header.Get(auth.HeaderClientID) {
			WriteError(w, http.StatusUnauthorized, "client_id does not match the signing client")
			return
		}

		token, expiresIn, err := sessions.Issue(req.ClientID)
		if err != nil {
			writeInternalError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, loginResponse{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresIn:   expiresIn,
		})
	}
}
