// internal/app/app.go
package app

import (
	"fmt"

	"go.uber.org/zap"

	"ironcore/internal/clients"
	"ironcore/internal/config"
	"ironcore/internal/lifecycle"
	"ironcore/internal/payment"
)

// App is a signed-out client session wired to the lifecycle coordinator.
type App struct {
	Client    *clients.GymClient
	Lifecycle lifecycle.Service
}

// NewGateway selects the payment gateway named by cfg.PaymentProvider.
func NewGateway(cfg *config.Config, ledger payment.Ledger, log *zap.Logger) (payment.Gateway, error) {
	switch cfg.PaymentProvider {
	case config.ProviderSimulated, "":
		return payment.NewSimulated(ledger, log), nil
	case config.ProviderMidtrans:
		return payment.NewMidtrans(ledger, cfg.MidtransServerKey, cfg.MidtransProduction, log), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := clients.NewGymClient(clients.Options{
		BaseURL: cfg.GymAPIURL,
		Timeout: cfg.GymAPITimeout,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	gateway, err := NewGateway(cfg, client, log)
	if err != nil {
		return nil, err
	}
	return &App{
		Client: client,
		Lifecycle: lifecycle.NewService(lifecycle.Deps{
			Backend: client,
			Gateway: gateway,
			Logger:  log,
		}),
	}, nil
}
