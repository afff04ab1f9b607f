package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleHealth answers GET /health, /v1/health with a bare liveness body.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}
