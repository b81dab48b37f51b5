package diag_test

import (
	"errors"
	"fmt"
	"testing"

	"traderev/pkg/diag"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	err := diag.Ef(diag.KindUnmatchedClose, "no open trade for symbol:%s", "AAPL")
	require.True(t, diag.Is(err, diag.KindUnmatchedClose))
	require.False(t, diag.Is(err, diag.KindMalformedRecord))
	require.Equal(t, diag.KindUnmatchedClose, diag.KindOf(err))
	require.Contains(t, err.Error(), "UnmatchedClose")
	require.Contains(t, err.Error(), "AAPL")
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := diag.E(diag.KindStoreUnavailable, cause)
	require.ErrorIs(t, err, cause)

	// kind survives another wrap layer
	outer := fmt.Errorf("fetch page: %w", err)
	require.True(t, diag.Is(outer, diag.KindStoreUnavailable))
	require.Equal(t, diag.KindStoreUnavailable, diag.KindOf(outer))
}

func TestUntaggedError(t *testing.T) {
	err := errors.New("plain")
	require.False(t, diag.Is(err, diag.KindStoreUnavailable))
	require.Empty(t, diag.KindOf(err))
}

func TestEventString(t *testing.T) {
	ev := diag.NewEvent(diag.KindMalformedRecord, 42, "TSLA", "non-positive amount")
	require.NotZero(t, ev.Time)
	s := ev.String()
	require.Contains(t, s, "MalformedRecord")
	require.Contains(t, s, "tx:42")
	require.Contains(t, s, "TSLA")
}
