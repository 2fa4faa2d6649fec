package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "billing-service/internal/pkg/errors"
)

func TestParseGateway(t *testing.T) {
	cases := []struct {
		value string
		want  Gateway
	}{
		{"free", GatewayFree},
		{"appStore", GatewayAppStore},
		{"playStore", GatewayPlayStore},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			got, err := ParseGateway(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.value, got.String())
		})
	}
}

func TestParseGatewayUnrecognized(t *testing.T) {
	for _, value := range []string{"bogus", "", "FREE", "appstore", "play_store"} {
		_, err := ParseGateway(value)
		require.Error(t, err, "value %q", value)
		assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	}
}

func TestGatewayValid(t *testing.T) {
	assert.True(t, GatewayFree.Valid())
	assert.True(t, GatewayAppStore.Valid())
	assert.True(t, GatewayPlayStore.Valid())
	assert.False(t, Gateway("stripe").Valid())
	assert.False(t, Gateway("").Valid())
}

func TestGatewayUsableAsMapKey(t *testing.T) {
	m := map[Gateway]string{
		GatewayAppStore: "a",
	}
	parsed, err := ParseGateway("appStore")
	require.NoError(t, err)
	assert.Equal(t, "a", m[parsed])
}
