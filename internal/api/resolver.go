package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/sqlgate-core/internal/crud"
	"github.com/nerrad567/sqlgate-core/internal/schema"
)

// Body is the parsed request payload for a table route.
type Body struct {
	Fields crud.FieldMap
	ID     any
}

// idStrategy yields a candidate row id from one source.
type idStrategy func(r *http.Request, fields crud.FieldMap, pathID string) (any, bool)

// idStrategies are evaluated in order; the first present value wins.
var idStrategies = []idStrategy{
	func(_ *http.Request, fields crud.FieldMap, _ string) (any, bool) {
		return normalizeID(fields[schema.PrimaryKey])
	},
	func(r *http.Request, _ crud.FieldMap, _ string) (any, bool) {
		return normalizeID(r.URL.Query().Get("id"))
	},
	func(_ *http.Request, _ crud.FieldMap, pathID string) (any, bool) {
		return normalizeID(pathID)
	},
}

// resolveBody parses the request payload by content type and picks the
// effective row id.
func resolveBody(r *http.Request, pathID string) (Body, error) {
	fields, err := parseFields(r)
	switch {
	case err == nil:
	case r.Method == http.MethodDelete && errors.Is(err, ErrMalformedBody):
		// A DELETE payload is optional; an unreadable one is ignored.
		fields = crud.FieldMap{}
	default:
		return Body{}, err
	}

	body := Body{Fields: fields}
	for _, strategy := range idStrategies {
		if id, ok := strategy(r, fields, pathID); ok {
			body.ID = id
			break
		}
	}
	return body, nil
}

// parseFields reads a JSON object or URL-encoded form. GET never reads a body.
func parseFields(r *http.Request) (crud.FieldMap, error) {
	fields := crud.FieldMap{}
	if r.Method == http.MethodGet || r.Body == nil {
		return fields, nil
	}

	switch mediaType(r) {
	case "application/json":
		obj, err := decodeObject(r.Body)
		if err != nil {
			return nil, err
		}
		for k, v := range obj {
			fields[k] = convertJSON(v)
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				fields[k] = vs[len(vs)-1]
			}
		}
	}
	return fields, nil
}

// mediaType returns the lower-cased media type without parameters.
func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt
}

// decodeObject decodes a JSON object, keeping numbers as json.Number.
// An empty body is an empty object.
func decodeObject(rd io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(rd)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedBody)
	}
	return obj, nil
}

// convertJSON maps a decoded JSON value onto a bindable SQL value.
func convertJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return val
	}
}

// normalizeID turns a candidate id into a bind value. Empty, zero and
// non-scalar candidates are absent.
func normalizeID(v any) (any, bool) {
	switch id := v.(type) {
	case nil:
		return nil, false
	case int64:
		return id, id != 0
	case float64:
		if id == 0 || math.IsNaN(id) || math.IsInf(id, 0) {
			return nil, false
		}
		if id == math.Trunc(id) && math.Abs(id) < 1<<53 {
			return int64(id), true
		}
		return id, true
	case string:
		s := strings.TrimSpace(id)
		if s == "" || s == "0" {
			return nil, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, n != 0
		}
		return s, true
	default:
		return nil, false
	}
}

// listParams reads search and paging from the query string. Unparseable
// numbers fall back to the defaults.
func listParams(r *http.Request) (page, pageSize int, search string) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))         //nolint:errcheck // zero means default
	pageSize, _ = strconv.Atoi(q.Get("page_size")) //nolint:errcheck // zero means default
	return page, pageSize, strings.TrimSpace(q.Get("search"))
}

// sqlRequest is the payload of POST /sql.
type sqlRequest struct {
	SQL        string
	Params     []any
	AllowWrite bool
}

// decodeSQLRequest reads {sql, params?, allow_write?} from a JSON body or
// a form. Form params are a JSON array in text form.
func decodeSQLRequest(r *http.Request) (sqlRequest, error) {
	var req sqlRequest
	if r.Body == nil {
		return req, nil
	}

	var obj map[string]any
	switch mediaType(r) {
	case "application/json":
		decoded, err := decodeObject(r.Body)
		if err != nil {
			return req, err
		}
		obj = decoded
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		obj = map[string]any{}
		for _, key := range []string{"sql", "allow_write"} {
			if r.PostForm.Has(key) {
				obj[key] = r.PostForm.Get(key)
			}
		}
		if raw := r.PostForm.Get("params"); raw != "" {
			dec := json.NewDecoder(strings.NewReader(raw))
			dec.UseNumber()
			var params []any
			if err := dec.Decode(&params); err != nil {
				return req, fmt.Errorf("%w: params: %v", ErrMalformedBody, err)
			}
			obj["params"] = params
		}
	default:
		return req, nil
	}

	if s, ok := obj["sql"].(string); ok {
		req.SQL = s
	}
	switch params := obj["params"].(type) {
	case []any:
		req.Params = make([]any, len(params))
		for i, p := range params {
			req.Params[i] = convertJSON(p)
		}
	case nil:
	default:
		return req, fmt.Errorf("%w: params must be an array", ErrMalformedBody)
	}
	req.AllowWrite = truthy(obj["allow_write"])
	return req, nil
}

// truthy interprets a loosely typed flag.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s != "" && s != "0" && s != "false"
	default:
		return false
	}
}
