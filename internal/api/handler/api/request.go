// internal/api/handler/api/request.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/newthinker/strategylab/internal/core"
)

// maxBodySize leaves room for a maximum-size source plus JSON escaping.
const maxBodySize = 4 << 20

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	return nil
}
