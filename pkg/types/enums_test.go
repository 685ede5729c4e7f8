package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociationType(t *testing.T) {
	tests := []struct {
		at   AssociationType
		want string
	}{
		{AssociationTypeClient, "CLIENT"},
		{AssociationTypeServer, "SERVER"},
		{AssociationTypeAnonymousServer, "ANONYMOUS_SERVER"},
		{AssociationType(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.at.String(); got != tt.want {
				t.Errorf("AssociationType(%d).String() = %q, want %q", tt.at, got, tt.want)
			}
		})
	}
}

func TestIPChannelType_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		T IPChannelType `json:"t"`
	}{IPChannelTCP})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"TCP"}`, string(b))

	var v struct {
		T IPChannelType `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"sctp"}`), &v))
	assert.Equal(t, IPChannelSCTP, v.T)

	err = json.Unmarshal([]byte(`{"t":"udp"}`), &v)
	assert.ErrorIs(t, err, ErrInvalidTransport)
	assert.True(t, IsValidation(err))
}

func TestAssociationState(t *testing.T) {
	assert.Equal(t, "up", StateUp.String())
	assert.Equal(t, "unknown", AssociationState(42).String())

	assert.True(t, StateCreated.Removable())
	assert.True(t, StateStopped.Removable())
	assert.False(t, StateStarted.Removable())
	assert.False(t, StateUp.Removable())
	assert.False(t, StateDown.Removable())
}
