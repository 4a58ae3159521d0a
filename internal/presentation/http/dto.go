package httppresentation

import (
	"time"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Money goes over the wire as a fixed two-decimal string.
func amount(d decimal.Decimal) string { return d.StringFixed(2) }

func optAmount(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	return lo.ToPtr(amount(*d))
}

type validationResponse struct {
	Valid    bool                `json:"valid"`
	Errors   []appcheckout.Issue `json:"errors"`
	Warnings []appcheckout.Issue `json:"warnings"`
}

func toValidationResponse(v appcheckout.Validation) validationResponse {
	return validationResponse{
		Valid:    v.Valid(),
		Errors:   lo.Ternary(v.Errors() == nil, []appcheckout.Issue{}, v.Errors()),
		Warnings: lo.Ternary(v.Warnings() == nil, []appcheckout.Issue{}, v.Warnings()),
	}
}

type quoteResponse struct {
	Currency             string `json:"currency"`
	Subtotal             string `json:"subtotal"`
	Tax                  string `json:"tax"`
	Shipping             string `json:"shipping"`
	Discount             string `json:"discount"`
	Total                string `json:"total"`
	FreeShipping         bool   `json:"free_shipping"`
	AmountToFreeShipping string `json:"amount_to_free_shipping"`
}

type previewLine struct {
	ProductID     string  `json:"product_id"`
	UnitPrice     string  `json:"unit_price"`
	DiscountPrice *string `json:"discount_price,omitempty"`
	Quantity      int     `json:"quantity"`
	LineTotal     string  `json:"line_total"`
}

type previewResponse struct {
	quoteResponse
	Lines      []previewLine      `json:"lines"`
	Validation validationResponse `json:"validation"`
}

func toPreviewResponse(p *appcheckout.Preview) previewResponse {
	q := p.Quote
	return previewResponse{
		quoteResponse: quoteResponse{
			Currency:             q.Currency.String(),
			Subtotal:             amount(q.Subtotal),
			Tax:                  amount(q.Tax),
			Shipping:             amount(q.Shipping),
			Discount:             amount(q.Discount),
			Total:                amount(q.Total),
			FreeShipping:         q.FreeShipping,
			AmountToFreeShipping: amount(q.AmountToFreeShipping),
		},
		Lines: lo.Map(p.Lines, func(l appcheckout.Line, _ int) previewLine {
			return previewLine{
				ProductID:     l.ProductID,
				UnitPrice:     amount(l.UnitPrice),
				DiscountPrice: optAmount(l.DiscountPrice),
				Quantity:      l.Quantity,
				LineTotal:     amount(l.Total()),
			}
		}),
		Validation: toValidationResponse(p.Validation),
	}
}

type placeOrderResponse struct {
	OrderID       string              `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	Total         string              `json:"total"`
	Currency      string              `json:"currency"`
	Flow          string              `json:"flow"`
	IntentID      string              `json:"payment_intent_id,omitempty"`
	ClientSecret  string              `json:"client_secret,omitempty"`
	Warnings      []appcheckout.Issue `json:"warnings,omitempty"`
}

type cartItemResponse struct {
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
	DiscountPrice *string   `json:"discount_price,omitempty"`
	LineTotal     string    `json:"line_total"`
	AddedAt       time.Time `json:"added_at"`
}

type cartResponse struct {
	UserID    string             `json:"user_id"`
	Items     []cartItemResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	Subtotal  string             `json:"subtotal"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	subtotal := decimal.Zero
	count := 0
	items := make([]cartItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		line := catalog.EffectivePrice(it.UnitPrice, it.DiscountPrice).Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
		count += it.Quantity
		items = append(items, cartItemResponse{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			UnitPrice:     amount(it.UnitPrice),
			DiscountPrice: optAmount(it.DiscountPrice),
			LineTotal:     amount(line),
			AddedAt:       it.AddedAt,
		})
	}
	res := cartResponse{
		UserID:    c.UserID,
		Items:     items,
		ItemCount: count,
		Subtotal:  amount(subtotal),
	}
	if !c.UpdatedAt.IsZero() {
		res.UpdatedAt = lo.ToPtr(c.UpdatedAt)
	}
	if !c.ExpiresAt.IsZero() {
		res.ExpiresAt = lo.ToPtr(c.ExpiresAt)
	}
	return res
}

type orderItemResponse struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	Brand         string  `json:"brand,omitempty"`
	UnitPrice     string  `json:"unit_price"`
	DiscountPrice *string `json:"discount_price,omitempty"`
	Quantity      int     `json:"quantity"`
	LineTotal     string  `json:"line_total"`
}

type addressResponse struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type orderResponse struct {
	ID                 string              `json:"id"`
	Number             string              `json:"order_number"`
	UserID             string              `json:"user_id"`
	Status             string              `json:"status"`
	PaymentStatus      string              `json:"payment_status"`
	Items              []orderItemResponse `json:"items"`
	Currency           string              `json:"currency"`
	Subtotal           string              `json:"subtotal"`
	Tax                string              `json:"tax"`
	Shipping           string              `json:"shipping"`
	Discount           string              `json:"discount"`
	Total              string              `json:"total"`
	AmountRefunded     string              `json:"amount_refunded"`
	ShippingAddress    addressResponse     `json:"shipping_address"`
	Notes              string              `json:"notes,omitempty"`
	TrackingNumber     string              `json:"tracking_number,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	CancelledBy        string              `json:"cancelled_by,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	ConfirmedAt        *time.Time          `json:"confirmed_at,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	a := o.ShippingAddress
	return orderResponse{
		ID:            o.ID,
		Number:        o.Number,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Items: lo.Map(o.Items, func(it domorder.Item, _ int) orderItemResponse {
			return orderItemResponse{
				ProductID:     it.ProductID,
				Name:          it.Name,
				SKU:           it.SKU,
				ImageURL:      it.ImageURL,
				Brand:         it.Brand,
				UnitPrice:     amount(it.UnitPrice),
				DiscountPrice: optAmount(it.DiscountPrice),
				Quantity:      it.Quantity,
				LineTotal:     amount(it.LineTotal),
			}
		}),
		Currency:       o.Currency.String(),
		Subtotal:       amount(o.Subtotal),
		Tax:            amount(o.Tax),
		Shipping:       amount(o.Shipping),
		Discount:       amount(o.Discount),
		Total:          amount(o.Total),
		AmountRefunded: amount(o.AmountRefunded),
		ShippingAddress: addressResponse{
			FullName:   a.FullName,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		},
		Notes:              o.Notes,
		TrackingNumber:     o.TrackingNumber,
		CancellationReason: o.CancellationReason,
		CancelledBy:        string(o.CancelledBy),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		PaidAt:             o.PaidAt,
		ConfirmedAt:        o.ConfirmedAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
	}
}

type paymentResponse struct {
	ID             string     `json:"id"`
	IntentID       string     `json:"payment_intent_id"`
	Status         string     `json:"status"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	AmountRefunded string     `json:"amount_refunded"`
	CardBrand      string     `json:"card_brand,omitempty"`
	CardLast4      string     `json:"card_last4,omitempty"`
	ReceiptURL     string     `json:"receipt_url,omitempty"`
	FailureCode    string     `json:"failure_code,omitempty"`
	FailureMessage string     `json:"failure_message,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toPaymentResponse(p *dompayment.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		IntentID:       p.IntentID,
		Status:         string(p.Status),
		Amount:         amount(p.Amount),
		Currency:       p.Currency.String(),
		AmountRefunded: amount(p.AmountRefunded),
		CardBrand:      p.CardBrand,
		CardLast4:      p.CardLast4,
		ReceiptURL:     p.ReceiptURL,
		FailureCode:    p.FailureCode,
		FailureMessage: p.FailureMessage,
		PaidAt:         p.PaidAt,
		CreatedAt:      p.CreatedAt,
	}
}

type paymentStatusResponse struct {
	OrderNumber    string            `json:"order_number"`
	OrderStatus    string            `json:"order_status"`
	PaymentStatus  string            `json:"payment_status"`
	Total          string            `json:"total"`
	AmountRefunded string            `json:"amount_refunded"`
	Latest         *paymentResponse  `json:"latest_payment,omitempty"`
	Payments       []paymentResponse `json:"payments"`
}
