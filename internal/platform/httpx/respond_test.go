package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/result"
)

func TestEnvelopeStatus(t *testing.T) {
	cases := []struct {
		kind result.Kind
		want int
	}{
		{result.KindValidation, http.StatusBadRequest},
		{result.KindNotFound, http.StatusNotFound},
		{result.KindConflict, http.StatusConflict},
		{result.KindPermission, http.StatusForbidden},
		{result.KindNetwork, http.StatusBadGateway},
		{result.KindConfig, http.StatusServiceUnavailable},
		{result.KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Envelope(rec, result.Fail[int](&result.Error{Kind: tc.kind, Message: "boom"}))
		require.Equal(t, tc.want, rec.Code, tc.kind)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, false, body["success"])
		require.Equal(t, "boom", body["error"])
	}

	rec := httptest.NewRecorder()
	EnvelopeCreated(rec, result.Ok(map[string]string{"id": "x"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"success":true,"data":{"id":"x"},"error":null}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var p payload
		return DecodeJSON(httptest.NewRecorder(), req, &p)
	}
	require.NoError(t, decode(`{"name":"x"}`))
	require.EqualError(t, decode(``), "request body is empty")
	require.EqualError(t, decode(`{"nope":1}`), `unknown field "nope"`)
	require.EqualError(t, decode(`{"name":"x"}{"name":"y"}`), "request body must contain a single JSON object")
}

func TestValidateNamesJSONField(t *testing.T) {
	type input struct {
		Supplier string  `json:"supplier" validate:"required"`
		Total    float64 `json:"total_amount" validate:"gte=0"`
		Status   string  `json:"status" validate:"omitempty,oneof=Active Pending"`
	}
	require.Nil(t, Validate("create", input{Supplier: "Acme"}))

	err := Validate("create", input{})
	require.NotNil(t, err)
	require.Equal(t, result.KindValidation, err.Kind)
	require.Equal(t, "supplier is required", err.Message)

	err = Validate("create", input{Supplier: "Acme", Status: "Lost"})
	require.Equal(t, "status must be one of: Active, Pending", err.Message)

	err = Validate("create", input{Supplier: "Acme", Total: -1})
	require.Equal(t, "total_amount must be at least 0", err.Message)
}
