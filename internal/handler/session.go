package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// CartTokenHeader carries the signed cart token on cart-scoped requests.
const CartTokenHeader = "X-Cart-Token"

// TokenSigner issues and verifies cart tokens of the form "<cartID>.<sig>"
// where sig is the hex HMAC-SHA256 of the cart ID under the server pepper.
// Carts are anonymous; the token is the only proof of ownership.
type TokenSigner struct {
	pepper []byte
}

// NewTokenSigner creates a TokenSigner with the given HMAC pepper.
func NewTokenSigner(pepper []byte) *TokenSigner {
	return &TokenSigner{pepper: pepper}
}

// Sign returns the signed token for a cart ID.
func (s *TokenSigner) Sign(cartID string) string {
	return cartID + "." + hex.EncodeToString(s.mac(cartID))
}

// Verify checks the token authorizes access to cartID. Comparison is
// constant-time to prevent timing side-channels.
func (s *TokenSigner) Verify(token, cartID string) bool {
	id, sigHex, ok := strings.Cut(token, ".")
	if !ok || id != cartID {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(sig, s.mac(cartID)) == 1
}

func (s *TokenSigner) mac(cartID string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(cartID))
	return mac.Sum(nil)
}

// RequireCartToken rejects cart-scoped requests whose token does not match
// the cart ID in the URL.
func (h *Handler) RequireCartToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cartID := chi.URLParam(r, "cartID")
		token := r.Header.Get(CartTokenHeader)
		if cartID == "" || token == "" || !h.tokens.Verify(token, cartID) {
			respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid cart token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
