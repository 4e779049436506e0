package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/reelhaven/mediaserver/internal/apierror"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteAPIError renders err as the {"error":{"code","message","details"}}
// envelope, coercing non-apierror values into an opaque internal error.
func WriteAPIError(w http.ResponseWriter, err error) {
	status, env := apierror.ToEnvelope(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func ReadJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
