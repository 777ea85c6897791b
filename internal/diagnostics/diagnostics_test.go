package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)

func signKey(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"role": "anon", "iss": "opsdash"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type fakeProbe struct {
	counts  map[string]int64
	errs    map[string]error
	missing map[string][]string
}

func (f fakeProbe) Count(_ context.Context, table string) (int64, error) {
	if err := f.errs[table]; err != nil {
		return 0, err
	}
	return f.counts[table], nil
}

func (f fakeProbe) MissingColumns(_ context.Context, table string, _ []string) ([]string, error) {
	return f.missing[table], nil
}

var undefinedTable = &pgconn.PgError{Code: "42P01", Message: `relation "x" does not exist`}

func TestInspectAPIKey(t *testing.T) {
	exp := testNow.Add(24 * time.Hour)
	key := signKey(t, "s3cret", exp)

	info, err := InspectAPIKey(key, "", testNow)
	require.NoError(t, err)
	require.Equal(t, "anon", info.Role)
	require.False(t, info.Verified)
	require.True(t, info.ExpiresAt.Equal(exp.Truncate(time.Second)))

	info, err = InspectAPIKey(key, "s3cret", testNow)
	require.NoError(t, err)
	require.True(t, info.Verified)

	_, err = InspectAPIKey(key, "other", testNow)
	require.ErrorIs(t, err, ErrKeySignature)

	_, err = InspectAPIKey(signKey(t, "s3cret", testNow.Add(-time.Hour)), "s3cret", testNow)
	require.ErrorIs(t, err, ErrKeyExpired)

	_, err = InspectAPIKey("plain-api-key", "", testNow)
	require.ErrorIs(t, err, ErrKeyMalformed)
}

func TestRunMockMode(t *testing.T) {
	report := NewChecker(nil, Options{Mock: true}, nil).Run(context.Background())
	require.Equal(t, "mock", report.Mode)
	require.Len(t, report.Tests, 1)
	require.Equal(t, StatusInfo, report.Tests[0].Status)
}

func TestRunMissingCredentials(t *testing.T) {
	report := NewChecker(fakeProbe{}, Options{BackendURL: "postgres://x"}, nil).Run(context.Background())
	require.Equal(t, "Backend credentials not configured", report.Error)
	require.Len(t, report.Tests, 1)
	require.Equal(t, StatusError, report.Tests[0].Status)
	require.False(t, report.Connected)
}

func TestRunFullReport(t *testing.T) {
	probe := fakeProbe{
		counts:  map[string]int64{"orders": 12, "invoices": 0, "alerts": 3},
		errs:    map[string]error{"activity": undefinedTable},
		missing: map[string][]string{"invoices": {"invoice_date"}},
	}
	c := NewChecker(probe, Options{BackendURL: "postgres://x", APIKey: signKey(t, "k", time.Time{}), Realtime: true}, nil)
	c.WithNow(func() time.Time { return testNow })
	report := c.Run(context.Background())

	require.True(t, report.Connected)
	require.Empty(t, report.Error)
	byName := map[string]Check{}
	for _, check := range report.Tests {
		byName[check.Name] = check
	}
	require.Equal(t, "Role anon, never expires", byName["API Key"].Message)
	require.Equal(t, "Connected! Found 12 orders", byName["Orders Table"].Message)
	require.Equal(t, "Connected! Found 0 invoices", byName["Invoices Table"].Message)
	require.Equal(t, StatusSuccess, byName["Orders Schema"].Status)
	require.Equal(t, StatusError, byName["Invoices Schema"].Status)
	require.Contains(t, byName["Invoices Schema"].Message, "invoice_date")
	require.Equal(t, StatusSuccess, byName["Alerts Table"].Status)
	require.Equal(t, StatusInfo, byName["Activity Table"].Status)
	require.Equal(t, "Realtime is enabled (will work if tables exist)", byName["Realtime Subscriptions"].Message)
	require.Equal(t, "Realtime Subscriptions", report.Tests[len(report.Tests)-1].Name)
}

func TestRunStopsWhenOrdersMissing(t *testing.T) {
	probe := fakeProbe{errs: map[string]error{"orders": undefinedTable}}
	report := NewChecker(probe, Options{BackendURL: "x", APIKey: "plain"}, nil).Run(context.Background())
	require.Equal(t, "Orders table not found", report.Error)
	last := report.Tests[len(report.Tests)-1]
	require.Equal(t, "Orders Table", last.Name)
	require.Equal(t, StatusWarning, report.Tests[1].Status, "a non-JWT key is only a warning")
}

func TestRunReportsConnectionError(t *testing.T) {
	probe := fakeProbe{errs: map[string]error{"orders": errors.New("tls handshake failed")}}
	report := NewChecker(probe, Options{BackendURL: "x", APIKey: "plain"}, nil).Run(context.Background())
	require.Equal(t, "tls handshake failed", report.Error)
	require.Equal(t, "Connection error: tls handshake failed", report.Tests[len(report.Tests)-1].Message)
}

func TestHandlerRoutes(t *testing.T) {
	h := NewHandler(NewChecker(nil, Options{Mock: true}, nil), Settings{
		Mock: true, Realtime: false, HighValue: 50000, Currency: "USD",
		Issues: []Issue{{Field: "WEBHOOK_URL", Message: "Document webhook URL not configured"}},
	})
	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	var cfg struct {
		Data ConfigView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cfg))
	require.Equal(t, "mock", cfg.Data.Mode)
	require.Len(t, cfg.Data.Issues, 1)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/settings/preferences", nil))
	require.JSONEq(t, `{"success":true,"data":{"high_value_threshold":50000,"default_currency":"USD","realtime_enabled":false},"error":null}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/settings/diagnostics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Mock Data Mode")
}
