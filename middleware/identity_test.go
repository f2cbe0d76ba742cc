package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/Mantequilla-Soft/3speak-gateway-aid/registry"
)

type fakeRegistry struct {
	encoders   map[string]*registry.Encoder
	touchedDID string
}

func (f *fakeRegistry) Get(did string) (*registry.Encoder, error) { return f.encoders[did], nil }
func (f *fakeRegistry) Put(e registry.Encoder) error               { return nil }
func (f *fakeRegistry) Touch(did string, now time.Time) error {
	f.touchedDID = did
	return nil
}
func (f *fakeRegistry) Close() error { return nil }

func TestWithEncoderIdentityMissingDID(t *testing.T) {
	reg := &fakeRegistry{encoders: map[string]*registry.Encoder{}}
	called := false
	handler := WithEncoderIdentity(reg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/list-jobs", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	handler(rec, req, nil)

	require.False(t, called)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithEncoderIdentityNotRegistered(t *testing.T) {
	reg := &fakeRegistry{encoders: map[string]*registry.Encoder{}}
	handler := WithEncoderIdentity(reg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {})

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/list-jobs", nil)
	req.Header.Set(didHeader, "did:example:unknown")
	rec := httptest.NewRecorder()
	handler(rec, req, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithEncoderIdentityInactive(t *testing.T) {
	reg := &fakeRegistry{encoders: map[string]*registry.Encoder{
		"did:example:E1": {EncoderID: "did:example:E1", IsActive: false},
	}}
	handler := WithEncoderIdentity(reg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {})

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/list-jobs", nil)
	req.Header.Set(didHeader, "did:example:E1")
	rec := httptest.NewRecorder()
	handler(rec, req, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithEncoderIdentityHeaderWinsOverLegacyBody(t *testing.T) {
	reg := &fakeRegistry{encoders: map[string]*registry.Encoder{
		"did:example:E1": {EncoderID: "did:example:E1", IsActive: true},
		"did:example:E2": {EncoderID: "did:example:E2", IsActive: true},
	}}

	var resolved *registry.Encoder
	handler := WithEncoderIdentity(reg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		resolved, _ = EncoderFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/list-jobs", bytes.NewReader([]byte(`{"encoder_did":"did:example:E2"}`)))
	req.Header.Set(didHeader, "did:example:E1")
	rec := httptest.NewRecorder()
	handler(rec, req, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolved)
	require.Equal(t, "did:example:E1", resolved.EncoderID)
	require.Equal(t, "did:example:E1", reg.touchedDID)
}

func TestWithEncoderIdentityFallsBackToLegacyBody(t *testing.T) {
	reg := &fakeRegistry{encoders: map[string]*registry.Encoder{
		"did:example:E2": {EncoderID: "did:example:E2", IsActive: true},
	}}

	var resolved *registry.Encoder
	handler := WithEncoderIdentity(reg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		resolved, _ = EncoderFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/aid/v1/list-jobs", bytes.NewReader([]byte(`{"encoder_did":"did:example:E2"}`)))
	rec := httptest.NewRecorder()
	handler(rec, req, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolved)
	require.Equal(t, "did:example:E2", resolved.EncoderID)
}
