package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
)

const maxBodyBytes = 64 << 10

type apiError struct {
	Error string `json:"error"`
}

// POST /api/recommend
//
//	{"moisture": "30.0", "temperature": 25, ..., "field_id": "f-12"}
//
// Values may be json strings or numbers.
func (d *Dashboard) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}
	body := map[string]any{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "request body must be a json object"})
		return
	}

	raw := advisor.CollectRawSample(func(k string) (string, bool) { return rawValue(body[k]) })
	fieldID, _ := rawValue(body["field_id"])

	rec, status, err := d.recommend(r.Context(), raw, strings.TrimSpace(fieldID))
	if err != nil {
		writeJSON(w, status, apiError{Error: advisor.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func rawValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		// booleans, arrays and objects fail parsing downstream
		return fmt.Sprint(t), true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
