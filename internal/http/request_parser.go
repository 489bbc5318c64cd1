package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst. Amount parse failures are
// reported against amountField.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, amountField string) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		var ve *core.ValidationError
		switch {
		case errors.As(err, &ve):
			return ve
		case errors.Is(err, core.ErrInvalidAmount):
			return core.Invalid(amountField, "must be a decimal number")
		case errors.Is(err, io.EOF):
			return core.Invalid("body", "must not be empty")
		case errors.As(err, &maxErr):
			return core.Invalid("body", "is too large")
		case errors.As(err, &syntaxErr):
			return core.Invalid("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return core.Invalid(field, "has the wrong type")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return core.Invalid(field, "is not a known field")
		}
		return core.Invalid("body", "malformed JSON")
	}
	if dec.More() {
		return core.Invalid("body", "must contain a single JSON object")
	}
	return nil
}

// parseEntryFilter reads kind, category, from, to and limit query parameters.
func parseEntryFilter(q url.Values) (core.EntryFilter, error) {
	f := core.EntryFilter{
		Kind:     core.EntryKind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		Category: q.Get("category"),
	}
	var err error
	if f.From, err = parseDateParam(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDateParam(q, "to"); err != nil {
		return f, err
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, core.Invalid("limit", "must be an integer")
		}
		f.Limit = n
	}
	return f, nil
}

// parseDateParam returns the zero Date when the parameter is absent.
func parseDateParam(q url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(name, "must be YYYY-MM-DD")
	}
	return d, nil
}
