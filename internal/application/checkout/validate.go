package checkout

import (
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

type IssueCode string

const (
	IssueProductNotFound   IssueCode = "PRODUCT_NOT_FOUND"
	IssueProductInactive   IssueCode = "PRODUCT_INACTIVE"
	IssueOutOfStock        IssueCode = "OUT_OF_STOCK"
	IssueInsufficientStock IssueCode = "INSUFFICIENT_STOCK"
	IssuePriceChanged      IssueCode = "PRICE_CHANGED"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found on a cart line.
type Issue struct {
	ProductID string           `json:"product_id"`
	Code      IssueCode        `json:"code"`
	Severity  Severity         `json:"severity"`
	Message   string           `json:"message"`
	Requested int              `json:"requested,omitempty"`
	Available *int             `json:"available,omitempty"`
	OldPrice  *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice  *decimal.Decimal `json:"new_price,omitempty"`
}

type Validation struct {
	Issues []Issue
}

// Valid is false when at least one issue blocks checkout.
func (v Validation) Valid() bool {
	for _, is := range v.Issues {
		if is.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (v Validation) Errors() []Issue   { return v.filter(SeverityError) }
func (v Validation) Warnings() []Issue { return v.filter(SeverityWarning) }

func (v Validation) filter(s Severity) []Issue {
	var out []Issue
	for _, is := range v.Issues {
		if is.Severity == s {
			out = append(out, is)
		}
	}
	return out
}

// ValidateCart checks every line against the current catalog; per line the first failing check wins.
func ValidateCart(c *cart.Cart, products map[string]*catalog.Product) Validation {
	var v Validation
	for _, it := range c.Items {
		if is, ok := checkLine(it, products[it.ProductID]); ok {
			v.Issues = append(v.Issues, is)
		}
	}
	return v
}

func checkLine(it cart.Item, p *catalog.Product) (Issue, bool) {
	issue := Issue{ProductID: it.ProductID, Requested: it.Quantity, Severity: SeverityError}
	switch {
	case p == nil:
		issue.Code = IssueProductNotFound
		issue.Message = "product no longer exists"
	case !p.Active:
		issue.Code = IssueProductInactive
		issue.Message = fmt.Sprintf("%s is no longer available", p.Name)
	case p.Stock <= 0:
		issue.Code = IssueOutOfStock
		issue.Message = fmt.Sprintf("%s is out of stock", p.Name)
		issue.Available = intPtr(p.Stock)
	case p.Stock < it.Quantity:
		issue.Code = IssueInsufficientStock
		issue.Message = fmt.Sprintf("only %d of %s left, reduce quantity", p.Stock, p.Name)
		issue.Available = intPtr(p.Stock)
	default:
		was := catalog.EffectivePrice(it.UnitPrice, it.DiscountPrice)
		now := p.EffectivePrice()
		if was.Equal(now) {
			return Issue{}, false
		}
		issue.Code = IssuePriceChanged
		issue.Severity = SeverityWarning
		issue.Message = fmt.Sprintf("price of %s changed from %s to %s", p.Name, was.StringFixed(2), now.StringFixed(2))
		issue.OldPrice, issue.NewPrice = &was, &now
	}
	return issue, true
}

func intPtr(v int) *int { return &v }
