package checkout

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseValidate = "checkout.validate"
	useCasePreview  = "checkout.preview"
)

var (
	_ application.UseCase[ValidateInput, *Validation] = (*ValidateUseCase)(nil)
	_ application.UseCase[PreviewInput, *Preview]     = (*PreviewUseCase)(nil)
)

type ValidateInput struct {
	Caller application.Caller
}

type ValidateUseCase struct {
	deps Deps
	in   application.Instruments
}

func NewValidateUseCase(deps Deps, tel observability.Observability) *ValidateUseCase {
	return &ValidateUseCase{deps: deps, in: application.NewInstruments(tel, checkoutService)}
}

func (uc *ValidateUseCase) Execute(ctx context.Context, cmd ValidateInput) (_ *Validation, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseValidate, "ValidateCart",
		attribute.String("user.id", cmd.Caller.UserID),
	)
	defer func() { probe.End(err) }()

	if err := requireCaller(cmd.Caller); err != nil {
		return nil, err
	}
	c, products, err := loadCart(ctx, uc.deps, cmd.Caller.UserID)
	if err != nil {
		return nil, err
	}

	v := ValidateCart(c, products)
	probe.Field("issues", len(v.Issues))
	if !v.Valid() {
		probe.Note("CART_INVALID")
	}
	return &v, nil
}

type PreviewInput struct {
	Caller application.Caller
}

// Preview is the priced cart with whatever issues validation found.
type Preview struct {
	Quote      Quote
	Lines      []Line
	Validation Validation
}

type PreviewUseCase struct {
	deps   Deps
	policy Policy
	in     application.Instruments
}

func NewPreviewUseCase(deps Deps, policy Policy, tel observability.Observability) *PreviewUseCase {
	return &PreviewUseCase{deps: deps, policy: policy, in: application.NewInstruments(tel, checkoutService)}
}

func (uc *PreviewUseCase) Execute(ctx context.Context, cmd PreviewInput) (_ *Preview, err error) {
	ctx, probe := uc.in.Begin(ctx, useCasePreview, "PreviewCheckout",
		attribute.String("user.id", cmd.Caller.UserID),
	)
	defer func() { probe.End(err) }()

	if err := requireCaller(cmd.Caller); err != nil {
		return nil, err
	}
	c, products, err := loadCart(ctx, uc.deps, cmd.Caller.UserID)
	if err != nil {
		return nil, err
	}

	lines := linesFor(c, products)
	quote := uc.policy.Price(lines)
	probe.Field("subtotal", quote.Subtotal.String())
	probe.Field("free_shipping", quote.FreeShipping)

	return &Preview{
		Quote:      quote,
		Lines:      lines,
		Validation: ValidateCart(c, products),
	}, nil
}
