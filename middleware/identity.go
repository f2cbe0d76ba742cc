// Package middleware implements the Identity Auth Middleware (spec §4.1) and a request
// logging decorator.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/config"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/errors"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/log"
	"github.com/Mantequilla-Soft/3speak-gateway-aid/registry"
)

// didHeader is the preferred source of the caller's DID; it wins over the legacy body
// field whenever both are present.
const didHeader = "X-Aid-Encoder-Did"

type encoderContextKeyType struct{}

var encoderContextKey = encoderContextKeyType{}

// EncoderFromContext returns the encoder attached by WithEncoderIdentity, if any.
func EncoderFromContext(ctx context.Context) (*registry.Encoder, bool) {
	e, ok := ctx.Value(encoderContextKey).(*registry.Encoder)
	return e, ok
}

// ContextWithEncoderForTest attaches an encoder the same way WithEncoderIdentity does, for
// handler tests that want to bypass the HTTP auth layer.
func ContextWithEncoderForTest(ctx context.Context, e *registry.Encoder) context.Context {
	return context.WithValue(ctx, encoderContextKey, e)
}

// legacyBody is the subset of the request body consulted for the legacy encoder_did field.
// The body is read, decoded into this struct, and replaced on the request so downstream
// handlers can still parse their own payload.
type legacyBody struct {
	EncoderDID string `json:"encoder_did"`
}

// WithEncoderIdentity resolves the caller's DID, checks the registry, and attaches the
// resolved encoder to the request context. This is the only authorization check in the
// Aid plane (spec §4.1); no signature is verified.
func WithEncoderIdentity(reg registry.Registry, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		did := r.Header.Get(didHeader)

		if did == "" && r.Body != nil {
			body, err := io.ReadAll(r.Body)
			if err == nil && len(body) > 0 {
				var lb legacyBody
				if json.Unmarshal(body, &lb) == nil {
					did = lb.EncoderDID
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		if did == "" {
			errors.WriteJSON(w, errors.InvalidRequest("no encoder DID supplied"))
			return
		}

		encoder, err := reg.Get(did)
		if err != nil {
			errors.WriteJSON(w, errors.Internal("failed to resolve encoder identity", err))
			return
		}
		if encoder == nil {
			errors.WriteJSON(w, errors.NotAuthorized("encoder is not registered"))
			return
		}
		if !encoder.IsActive {
			errors.WriteJSON(w, errors.Inactive("encoder is registered but inactive"))
			return
		}

		if err := reg.Touch(did, config.Clock.GetTime()); err != nil {
			log.LogNoRequestID("failed to stamp encoder last_seen", "did", did, "err", err)
		}

		ctx := context.WithValue(r.Context(), encoderContextKey, encoder)
		next(w, r.WithContext(ctx), ps)
	}
}
