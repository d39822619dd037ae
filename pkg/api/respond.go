// SPDX-License-Identifier: LGPL-3.0-or-later

// Package api implements the signed-request HTTP API (spec.md component
// C7): resource-oriented JSON over HTTPS, authenticated by either an
// HMAC-signed session cookie or the signed envelope described in spec.md
// §6, every error normalized to the {error:{code,message,details?}} shape.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorBody struct {
	Error struct {
		Code    apperr.Code            `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// writeError normalizes err to the platform's external error shape. Any
// error that isn't already an *apperr.Error is logged with full detail and
// surfaced to the caller only as INTERNAL_ERROR (spec.md §7 propagation
// policy).
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		log.Error("unnormalized error reached API boundary", logger.Error(err))
		ae = apperr.New(apperr.CodeInternal, "internal error")
	}
	body := errorBody{}
	body.Error.Code = ae.Code
	body.Error.Message = ae.Message
	body.Error.Details = ae.Details
	writeJSON(w, ae.Code.HTTPStatus(), body)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "malformed request body", err)
	}
	return nil
}

// pagination parses limit/offset query params per spec.md §6 (limit <= 100,
// default 20).
func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := parsePositiveInt(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, apperr.New(apperr.CodeValidation, "not a number")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
