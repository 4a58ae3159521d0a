// Package apptest builds in-memory collaborators for use case tests.
package apptest

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway/fake"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

// World is one isolated set of stores, a fake gateway and an event recorder.
type World struct {
	Orders    *memory.OrderRepository
	Payments  *memory.PaymentRepository
	Products  *memory.ProductStore
	Customers *memory.CustomerDirectory
	Carts     *memory.CartRepository
	Processed *memory.ProcessedEvents
	Gateway   *fake.Gateway
	Events    *Recorder
}

func NewWorld() *World {
	return &World{
		Orders:    memory.NewOrderRepository(),
		Payments:  memory.NewPaymentRepository(),
		Products:  memory.NewProductStore(),
		Customers: memory.NewCustomerDirectory(),
		Carts:     memory.NewCartRepository(),
		Processed: memory.NewProcessedEvents(time.Hour),
		Gateway:   fake.New(),
		Events:    &Recorder{},
	}
}

// Product stores an active product with a random name.
func (w *World) Product(price string, stock int) catalog.Product {
	p := catalog.Product{
		ID:     "prod-" + uuid.NewString()[:8],
		Name:   gofakeit.ProductName(),
		SKU:    gofakeit.LetterN(3) + "-" + gofakeit.DigitN(4),
		Brand:  gofakeit.Company(),
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
	w.Products.Put(p)
	return p
}

// Buyer stores a user with one address and returns both ids.
func (w *World) Buyer() (userID, addressID string) {
	userID, addressID = "user-"+uuid.NewString()[:8], "addr-"+uuid.NewString()[:8]
	name := gofakeit.Name()
	w.Customers.PutUser(customer.User{ID: userID, Email: gofakeit.Email(), Name: name})
	w.Customers.PutAddress(customer.Address{
		ID:         addressID,
		UserID:     userID,
		FullName:   name,
		Line1:      gofakeit.Street(),
		City:       gofakeit.City(),
		State:      gofakeit.StateAbr(),
		PostalCode: gofakeit.Zip(),
		Country:    "US",
	})
	return userID, addressID
}

// Line is a cart line at the product's current price.
type Line struct {
	Product  catalog.Product
	Quantity int
}

// FillCart replaces the user's cart with lines priced as the product stands now.
func (w *World) FillCart(t testing.TB, userID string, lines ...Line) {
	t.Helper()
	now := time.Now().UTC()
	c := cart.New(userID)
	for _, l := range lines {
		require.NoError(t, c.Add(cart.Item{
			ProductID:     l.Product.ID,
			Quantity:      l.Quantity,
			UnitPrice:     l.Product.Price,
			DiscountPrice: l.Product.DiscountPrice,
			StockSnapshot: l.Product.Stock,
			AddedAt:       now,
		}))
	}
	c.Touch(now, cart.DefaultTTL)
	require.NoError(t, w.Carts.Save(context.Background(), c))
}

// StockOf reads the current stock of a product.
func (w *World) StockOf(t testing.TB, productID string) int {
	t.Helper()
	p, err := w.Products.FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

// Order stores an untaxed, free-shipping order for userID whose total is the sum of its lines.
// Mutate runs before the insert.
func (w *World) Order(t testing.TB, userID string, mutate func(*domorder.Order), lines ...Line) *domorder.Order {
	t.Helper()
	items := make([]domorder.Item, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		total := l.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(total)
		items = append(items, domorder.Item{
			ProductID:     l.Product.ID,
			Name:          l.Product.Name,
			SKU:           l.Product.SKU,
			UnitPrice:     l.Product.Price,
			DiscountPrice: l.Product.DiscountPrice,
			Quantity:      l.Quantity,
			LineTotal:     total,
		})
	}
	number := "ORD-" + time.Now().UTC().Format("20060102") + "-" + strings.ToUpper(gofakeit.LetterN(4))
	o, err := domorder.New("order-"+uuid.NewString()[:8], number, userID, items,
		domorder.Totals{Currency: currency.USD, Subtotal: subtotal},
		domorder.ShippingAddress{FullName: gofakeit.Name(), Line1: gofakeit.Street(), City: gofakeit.City(), Country: "US"},
		"",
	)
	require.NoError(t, err)
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, w.Orders.Insert(context.Background(), o))
	return o
}

// Reload reads the stored copy of o.
func (w *World) Reload(t testing.TB, o *domorder.Order) *domorder.Order {
	t.Helper()
	got, err := w.Orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	return got
}

// Recorder is a publisher that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []domoutbox.Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e domoutbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// Named returns the recorded events called name, oldest first.
func (r *Recorder) Named(name string) []domoutbox.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domoutbox.Event
	for _, e := range r.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// Sequence hands out predictable ids.
type Sequence struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.Prefix + "-" + strconv.Itoa(s.n)
}
