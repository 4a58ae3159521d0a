package app

import (
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	demoUserID    = "demo-user"
	demoAddressID = "demo-address"
)

// seedDemo gives a dev instance on memory storage something to check out.
func seedDemo(products *memory.ProductStore, customers *memory.CustomerDirectory) {
	for _, p := range []catalog.Product{
		{ID: "tee-black", Name: "Black Tee", SKU: "TEE-BLK", Brand: "minishop", Price: decimal.RequireFromString("25.00"), Stock: 40, Active: true},
		{ID: "hoodie-grey", Name: "Grey Hoodie", SKU: "HOOD-GRY", Brand: "minishop", Price: decimal.RequireFromString("60.00"), DiscountPrice: lo.ToPtr(decimal.RequireFromString("48.00")), Stock: 10, Active: true},
		{ID: "mug", Name: "Logo Mug", SKU: "MUG-01", Brand: "minishop", Price: decimal.RequireFromString("12.50"), Stock: 3, Active: true},
		{ID: "cap-retired", Name: "Retired Cap", SKU: "CAP-OLD", Brand: "minishop", Price: decimal.RequireFromString("18.00"), Stock: 5, Active: false},
	} {
		products.Put(p)
	}
	customers.PutUser(customer.User{ID: demoUserID, Email: "demo@minishop.test", Name: "Demo Buyer"})
	customers.PutAddress(customer.Address{
		ID:         demoAddressID,
		UserID:     demoUserID,
		FullName:   "Demo Buyer",
		Line1:      "1 Market St",
		City:       "San Francisco",
		State:      "CA",
		PostalCode: "94105",
		Country:    "US",
	})
}
