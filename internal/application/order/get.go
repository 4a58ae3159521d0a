package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderGet = "order.get"

var _ application.UseCase[GetOrderInput, *domorder.Order] = (*GetOrderUseCase)(nil)

type GetOrderInput struct {
	Caller      application.Caller
	OrderNumber string
}

type GetOrderUseCase struct {
	repo domorder.Repository
	in   application.Instruments
}

func NewGetOrderUseCase(repo domorder.Repository, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{repo: repo, in: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, cmd GetOrderInput) (_ *domorder.Order, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseOrderGet, "GetOrder",
		attribute.String("order.number", cmd.OrderNumber),
	)
	defer func() { probe.End(err) }()

	return LoadForCaller(ctx, uc.repo, cmd.OrderNumber, cmd.Caller)
}
