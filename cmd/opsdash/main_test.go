package main

import (
	stdtesting "testing"

	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/app"
	_ "github.com/fmc-ops/opsdash/testing"
)

func TestMainReturnsInTestMode(t *stdtesting.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
