package ap2

import (
	"net/http"

	"github.com/agentpay/ap2/jws"
)

// KeysHandler publishes a party's public keys in the JWKS shape that
// [NewPlatformKeys] consumes. The first key is the active signing key.
func KeysHandler(keys ...jws.PublicKey) http.Handler {
	set := KeySet{Keys: keys}
	if set.Keys == nil {
		set.Keys = []jws.PublicKey{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, NewHTTPError(http.StatusMethodNotAllowed, InvalidRequest, ErrorCode(InvalidRequest), "method not allowed"))
			return
		}
		writeJSON(w, http.StatusOK, set)
	})
}
