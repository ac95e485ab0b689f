package http

import (
	"encoding/json"
	"net/http"
	"path"
	"strconv"
	"strings"

	applog "salvadanaio/internal/log"
)

// maxNavLimit caps the limit query parameter.
const maxNavLimit = 100

// parseLimit reads the limit query parameter. Missing, invalid or negative
// values mean no limit.
func parseLimit(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return min(n, maxNavLimit)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// itemID reads the mascot identifier from a form or a JSON body.
func itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
			return "", false
		}
		id := sanitizeInput(body.ID)
		return id, id != ""
	}
	if err := r.ParseForm(); err != nil {
		return "", false
	}
	id := sanitizeInput(r.PostForm.Get("id"))
	return id, id != ""
}

// itemLabel turns "/mascots/food/burger.png" into "burger".
func itemLabel(id string) string {
	base := path.Base(id)
	return strings.TrimSuffix(base, path.Ext(base))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Encode response failed", applog.FieldError, err)
	}
}

type apiError struct {
	Error string `json:"error"`
}
