package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		empty   bool
		kind    Kind
		message string
	}{
		{name: "no rows", err: pgx.ErrNoRows, empty: true},
		{name: "missing relation", err: &pgconn.PgError{Code: "42P01", Message: `relation "alerts" does not exist`}, empty: true},
		{name: "missing relation sentinel", err: fmt.Errorf("alerts: %w", ErrRelationMissing), empty: true},
		{name: "permission", err: &pgconn.PgError{Code: "42501"}, kind: KindPermission, message: MsgPermission},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, kind: KindConflict, message: MsgDuplicate},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, kind: KindForeignKey, message: MsgForeignKey},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, kind: KindNetwork, message: MsgNetwork},
		{name: "deadline", err: context.DeadlineExceeded, kind: KindNetwork, message: MsgNetwork},
		{name: "backend message", err: &pgconn.PgError{Code: "22P02", Message: "invalid input syntax"}, kind: KindUnknown, message: "invalid input syntax"},
		{name: "plain", err: errors.New("boom"), kind: KindUnknown, message: "boom"},
		{name: "blank", err: errors.New(""), kind: KindUnknown, message: MsgUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Classify("op", tc.err)
			require.Equal(t, tc.empty, out.Empty)
			if tc.empty {
				require.Nil(t, out.Err)
				return
			}
			require.NotNil(t, out.Err)
			require.Equal(t, tc.kind, out.Err.Kind)
			require.Equal(t, tc.message, out.Err.Message)
			require.Equal(t, "op", out.Err.Op)
		})
	}
}

func TestClassifyKeepsDomainErrors(t *testing.T) {
	errMissing := Sentinel(KindNotFound, "Order not found")
	out := Classify("getOrder", fmt.Errorf("orders: get: %w", errMissing))
	require.NotNil(t, out.Err)
	require.Equal(t, KindNotFound, out.Err.Kind)
	require.Equal(t, "getOrder", out.Err.Op)
	require.ErrorIs(t, out.Err, errMissing)
}

func TestFromEmptyYieldsZeroValue(t *testing.T) {
	res := FromList[int]("alerts", []int{1}, pgx.ErrNoRows)
	require.True(t, res.IsOk())
	require.NotNil(t, res.Value())
	require.Empty(t, res.Value())

	res = FromList[int]("alerts", nil, nil)
	require.Equal(t, []int{}, res.Value())
}

func TestFromNotifiesObserver(t *testing.T) {
	var labels []string
	SetObserver(func(op string, out Outcome) { labels = append(labels, op+":"+out.Label()) })
	t.Cleanup(func() { SetObserver(nil) })

	From("a", 1, nil)
	From("b", 0, pgx.ErrNoRows)
	From("c", 0, &pgconn.PgError{Code: "23505"})

	require.Equal(t, []string{"a:ok", "b:empty", "c:conflict"}, labels)
}

func TestEnvelopeJSON(t *testing.T) {
	raw, err := json.Marshal(Ok(map[string]int{"deleted": 2}))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"data":{"deleted":2},"error":null}`, string(raw))

	raw, err = json.Marshal(Fail[int](Invalid("deleteOrders", "No orders selected")))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"data":null,"error":"No orders selected"}`, string(raw))

	var back Result[map[string]int]
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"data":{"deleted":2},"error":null}`), &back))
	require.True(t, back.IsOk())
	require.Equal(t, 2, back.Value()["deleted"])

	var failed Result[int]
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"data":null,"error":"nope"}`), &failed))
	require.False(t, failed.IsOk())
	require.Equal(t, "nope", failed.ErrorMessage())
}

func TestMapSkipsFailures(t *testing.T) {
	doubled := Map(Ok(2), func(v int) int { return v * 2 })
	require.Equal(t, 4, doubled.Value())

	failed := Map(Fail[int](nil), func(v int) int { return v * 2 })
	require.False(t, failed.IsOk())
	require.Equal(t, MsgUnexpected, failed.ErrorMessage())
}
