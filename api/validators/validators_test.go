package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

type quotePayload struct {
	ItemID   string `json:"itemId" validate:"required,uuid"`
	Quantity int    `json:"requestedQuantity"`
}

func TestDecodeJSONBody(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId":"`+id+`","requestedQuantity":3}`))
	var payload quotePayload
	require.NoError(t, DecodeJSONBody(req, &payload))
	require.Equal(t, id, payload.ItemID)
	require.Equal(t, 3, payload.Quantity)
}

func TestDecodeJSONBodyAllowsTrailingWhitespace(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{\"itemId\":\""+id+"\",\"requestedQuantity\":3}\n\t "))
	var payload quotePayload
	require.NoError(t, DecodeJSONBody(req, &payload))
	require.Equal(t, id, payload.ItemID)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId":"x","extra":true}`))
	var payload quotePayload
	err := DecodeJSONBody(req, &payload)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId":"not-a-uuid"}`))
	var payload quotePayload
	err := DecodeJSONBody(req, &payload)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, map[string]string{"itemId": "must be a valid uuid"}, typed.Details())
}

type cartPayload struct {
	Lines []struct {
		ItemID string `json:"itemId" validate:"required,uuid"`
	} `json:"lines" validate:"required,min=1,dive"`
	Status string `json:"status" validate:"omitempty,group_status"`
}

func TestDecodeJSONBodyKeysNestedErrorsByJSONPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[{"itemId":"`+uuid.NewString()+`"},{"itemId":"x"}],"status":"shipped"}`))
	var payload cartPayload
	err := DecodeJSONBody(req, &payload)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, map[string]string{
		"lines[1].itemId": "must be a valid uuid",
		"status":          "must be one of pending, confirmed, preparing, ready, delivered, cancelled",
	}, typed.Details())
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingInput(t *testing.T) {
	for _, body := range []string{"", `{"lines":[]} {"lines":[]}`, `{"lines":[]}}`, `{"lines":[]}]`, `{"lines":[]} x`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var payload cartPayload
		err := DecodeJSONBody(req, &payload)
		require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), body)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"lines":[]}`))
	var payload cartPayload
	typed := pkgerrors.As(DecodeJSONBody(req, &payload))
	require.NotNil(t, typed)
	require.Equal(t, map[string]string{"lines": "must contain at least 1 entries"}, typed.Details())
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderID", id.String())
	routeCtx.URLParams.Add("bad", "nope")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	got, err := ParseUUIDParam(req, "orderID")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "bad")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = ParseUUIDParam(req, "missing")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
