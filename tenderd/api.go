package main

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/cloudx-io/sealedtender/core"
)

// Wire envelope for all tenderd requests. Type selects the operation; the
// remaining fields are operation-specific. Monetary values travel as strings
// and are parsed with exact decimal arithmetic.
type request struct {
	Type string `json:"type"`

	Caller    string `json:"caller,omitempty"`
	Principal string `json:"principal,omitempty"`
	TenderID  string `json:"tender_id,omitempty"`
	Bidder    string `json:"bidder,omitempty"`

	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Score    int    `json:"score,omitempty"`

	Title                 string `json:"title,omitempty"`
	Description           string `json:"description,omitempty"`
	Budget                string `json:"budget,omitempty"`
	Deadline              string `json:"deadline,omitempty"` // RFC 3339
	RequiresQualification bool   `json:"requires_qualification,omitempty"`

	Amount   string `json:"amount,omitempty"`
	Proposal string `json:"proposal,omitempty"`

	// reveal_callback: base64 of the signed COSE envelope
	RevealEnvelope string `json:"reveal_envelope,omitempty"`
}

type response struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func okResponse(data any) response {
	return response{Type: "response", Success: true, Data: data}
}

func errResponse(err error) response {
	return response{Type: "response", Success: false, Code: errCode(err), Message: err.Error()}
}

// errCode maps a domain error to a stable wire code.
func errCode(err error) string {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, core.ErrProtocol):
		return "protocol"
	default:
		return "internal"
	}
}

func parseDeadline(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func decodeEnvelope(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}
