package pfsolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnnotateErrPreservesSentinelIdentity(t *testing.T) {
	err := AnnotateErr(ErrSingular, "row %d pivot unusable", 4)
	require.ErrorIs(t, err, ErrSingular)
	require.NotErrorIs(t, err, ErrDidNotConverge)
	require.Contains(t, err.Error(), "row 4 pivot unusable")
}

func TestSentinelsAreDistinct(t *testing.T) {
	require.False(t, errors.Is(ErrSingular, ErrAssembly))
	require.False(t, errors.Is(ErrDidNotConverge, ErrSingular))
}
