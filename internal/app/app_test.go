package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironcore/internal/config"
	"ironcore/internal/payment"
)

func TestNewGateway(t *testing.T) {
	gw, err := NewGateway(&config.Config{PaymentProvider: config.ProviderSimulated}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &payment.Simulated{}, gw)

	gw, err = NewGateway(&config.Config{PaymentProvider: config.ProviderMidtrans, MidtransServerKey: "SB-key"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &payment.Midtrans{}, gw)

	_, err = NewGateway(&config.Config{PaymentProvider: "cash"}, nil, nil)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	a, err := New(&config.Config{GymAPIURL: "http://localhost:8090", PaymentProvider: config.ProviderSimulated}, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Client)
	assert.NotNil(t, a.Lifecycle)

	_, err = New(&config.Config{}, nil)
	assert.Error(t, err)
}
