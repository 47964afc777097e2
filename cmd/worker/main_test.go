package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agristock/agristock/internal/app"
	_ "github.com/agristock/agristock/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
