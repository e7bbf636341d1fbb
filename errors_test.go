package proclink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmora/proclink/driver"
)

func TestInvalidOptionsError_Message(t *testing.T) {
	err := &InvalidOptionsError{Keys: []string{"alpha", "beta"}}
	require.Equal(t, "proclink: invalid options: alpha, beta", err.Error())
}

func TestSentinels_AliasDriverErrors(t *testing.T) {
	// The root package re-exports the driver sentinels so callers never
	// need to import the driver package for error checks.
	require.True(t, errors.Is(driver.ErrChannelClosed, ErrChannelClosed))
	require.True(t, errors.Is(driver.ErrEOFUnsupported, ErrEOFUnsupported))
}
