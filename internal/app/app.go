// Package app assembles the checkout service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/ordernumber"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	apprefund "github.com/Zhima-Mochi/minishop-checkout/internal/application/refund"
	appwebhook "github.com/Zhima-Mochi/minishop-checkout/internal/application/webhook"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway/fake"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway/stripe"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/kafkarelay"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/notify"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
	"github.com/redis/go-redis/v9"
)

// Stores are the persistence ports the service runs on.
type Stores struct {
	Orders    domorder.Repository
	Payments  dompayment.Repository
	Catalog   catalog.Repository
	Stock     dominv.Stock
	Customers customer.Directory
	Carts     domcart.Repository
	Processed appwebhook.ProcessedStore
}

type Options struct {
	Observability observability.Observability
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Stores replaces the stores selected by STORAGE and REDIS_ADDR.
	Stores *Stores
	// Gateway replaces the gateway selected by GATEWAY_MODE.
	Gateway dompayment.Gateway
}

type worker interface{ Start() }

type App struct {
	cfg     config.Config
	tel     observability.Observability
	log     observability.Logger
	bus     *outbox.Bus
	handler http.Handler
	workers []worker
	closers []func() error
}

// relayedEvents are mirrored to Kafka when brokers are configured.
var relayedEvents = []string{
	domorder.PlacedEvent{}.EventName(),
	domorder.PaidEvent{}.EventName(),
	domorder.CancelledEvent{}.EventName(),
	domorder.RefundedEvent{}.EventName(),
	domorder.PaidAfterCancelEvent{}.EventName(),
	dominv.ReservationFailedEvent{}.EventName(),
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	tel := observability.OrNop(opts.Observability)
	a := &App{
		cfg: cfg,
		tel: tel,
		log: tel.Logger().With(observability.F("component", "app")),
	}
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	flow, err := appcheckout.ParseFlow(cfg.CheckoutFlow)
	if err != nil {
		return nil, err
	}

	stores := opts.Stores
	if stores == nil {
		if stores, err = a.openStores(ctx); err != nil {
			return nil, err
		}
	}
	gateway := opts.Gateway
	if gateway == nil {
		if gateway, err = a.openGateway(); err != nil {
			return nil, err
		}
	}

	a.bus = outbox.NewBus(tel.Logger(), outbox.WithContextHook(workerpresentation.EventContext(tel.Logger())))
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkarelay.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, writer.Close)
		kafkarelay.NewRelay(writer, tel.Logger()).Register(a.bus, relayedEvents...)
	}

	ids := id.NewUUIDGenerator()
	ledger := appinventory.NewLedger(stores.Stock, tel)
	adapter := apppayment.NewAdapter(gateway, stores.Payments, ids, tel)
	policy := appcheckout.Policy{
		Currency:              cfg.Currency,
		TaxRate:               cfg.TaxRate,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingRate:      cfg.FlatShippingRate,
	}
	deps := appcheckout.Deps{
		Carts:     stores.Carts,
		Catalog:   stores.Catalog,
		Customers: stores.Customers,
		Orders:    stores.Orders,
		Numbers:   ordernumber.NewIssuer(stores.Orders, tel.Logger()),
		Ledger:    ledger,
		Intents:   adapter,
		IDs:       ids,
		Publisher: a.bus,
	}

	svc := httppresentation.Services{
		Validate:      appcheckout.NewValidateUseCase(deps, tel),
		Preview:       appcheckout.NewPreviewUseCase(deps, policy, tel),
		PlaceOrder:    appcheckout.NewPlaceOrderUseCase(deps, policy, flow, tel),
		CreateIntent:  apppayment.NewCreateIntentUseCase(stores.Orders, stores.Customers, adapter, tel),
		PaymentStatus: apppayment.NewGetStatusUseCase(stores.Orders, stores.Payments, tel),
		Refund: apprefund.NewProcessor(apprefund.Deps{
			Orders:    stores.Orders,
			Payments:  stores.Payments,
			Gateway:   adapter,
			Stock:     ledger,
			Publisher: a.bus,
		}, cfg.RefundWindowDays, tel),
		Eligibility: apprefund.NewEligibilityUseCase(stores.Orders, cfg.RefundWindowDays, tel),
		Webhook: appwebhook.NewProcessor(
			appwebhook.Config{Secret: cfg.WebhookSecret, Tolerance: cfg.WebhookTolerance},
			stores.Payments, stores.Orders, ledger, stores.Processed, a.bus, tel,
		),
		GetOrder:     apporder.NewGetOrderUseCase(stores.Orders, tel),
		CancelOrder:  apporder.NewCancelOrderUseCase(stores.Orders, ledger, a.bus, tel),
		UpdateStatus: apporder.NewUpdateStatusUseCase(stores.Orders, tel),
		Cart:         appcart.NewService(stores.Carts, stores.Catalog, cfg.CartTTL, tel),
	}
	a.handler = httppresentation.NewHandler(svc, opts.Metrics, tel).Router()

	a.workers = []worker{
		appinventory.NewWorker(a.bus, tel),
		apppayment.NewWorker(a.bus, stores.Payments, adapter, tel),
		notification.NewWorker(a.bus, stores.Customers, notify.NewLogNotifier(tel.Logger()), tel),
	}
	return a, nil
}

func (a *App) Handler() http.Handler { return a.handler }

// Start subscribes the workers and begins delivering events.
func (a *App) Start(ctx context.Context) {
	for _, w := range a.workers {
		w.Start()
	}
	a.bus.Start(ctx)
}

// Shutdown drains the event bus and releases connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.bus.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bus.Stop: %w", err))
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStores(ctx context.Context) (*Stores, error) {
	s := &Stores{}

	switch a.cfg.Storage {
	case config.StoragePostgres:
		if err := postgres.Migrate(a.cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("postgres.Migrate: %w", err)
		}
		pool, err := postgres.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		products := postgres.NewProductStore(pool)
		s.Orders = postgres.NewOrderRepository(pool)
		s.Payments = postgres.NewPaymentRepository(pool)
		s.Catalog, s.Stock = products, products
		s.Customers = postgres.NewCustomerDirectory(pool)
	default:
		products := memory.NewProductStore()
		customers := memory.NewCustomerDirectory()
		if a.cfg.Env == "dev" {
			seedDemo(products, customers)
			a.log.Info("demo_catalog_seeded", observability.F("user_id", demoUserID))
		}
		s.Orders = memory.NewOrderRepository()
		s.Payments = memory.NewPaymentRepository()
		s.Catalog, s.Stock = products, products
		s.Customers = customers
	}

	if a.cfg.RedisAddr == "" {
		s.Carts = memory.NewCartRepository()
		s.Processed = memory.NewProcessedEvents(a.cfg.WebhookDedupeTTL)
		return s, nil
	}

	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", a.cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, client.Close)
	s.Carts = redisstore.NewCartStore(client)
	s.Processed = redisstore.NewProcessedEvents(client, a.cfg.WebhookDedupeTTL)
	return s, nil
}

func (a *App) openGateway() (dompayment.Gateway, error) {
	if a.cfg.GatewayMode != config.GatewayStripe {
		a.log.Warn("fake_payment_gateway_in_use")
		return fake.New(), nil
	}
	client, err := stripe.New(stripe.Config{
		BaseURL:   a.cfg.GatewayBaseURL,
		SecretKey: a.cfg.GatewaySecretKey,
		Timeout:   a.cfg.GatewayTimeout,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
