package httpx

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
)

// ErrNotJSON is returned when a request body is not a JSON document.
var ErrNotJSON = errors.New("is not json")

const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v. Requests without a JSON
// content type or with a malformed body yield ErrNotJSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || (mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json")) {
		return ErrNotJSON
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return ErrNotJSON
	}
	return nil
}

type Field struct {
	Name    string
	Present bool
}

// MissingFields returns the names of absent fields in declaration order.
func MissingFields(fields ...Field) []string {
	var missing []string
	for _, f := range fields {
		if !f.Present {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

func MissingDetail(missing []string) string {
	return "Missing fields: " + strings.Join(missing, ", ")
}
