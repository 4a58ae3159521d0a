package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderUpdateStatus = "order.update_status"

var _ application.UseCase[UpdateStatusInput, *domorder.Order] = (*UpdateStatusUseCase)(nil)

type UpdateStatusInput struct {
	Caller         application.Caller
	OrderNumber    string
	Target         domorder.Status
	TrackingNumber string
}

// UpdateStatusUseCase lets an admin move an order forward through fulfilment.
type UpdateStatusUseCase struct {
	repo domorder.Repository
	in   application.Instruments
}

func NewUpdateStatusUseCase(repo domorder.Repository, tel observability.Observability) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{repo: repo, in: application.NewInstruments(tel, orderService)}
}

func (uc *UpdateStatusUseCase) Execute(ctx context.Context, cmd UpdateStatusInput) (_ *domorder.Order, err error) {
	ctx, probe := uc.in.Begin(ctx, useCaseOrderUpdateStatus, "UpdateOrderStatus",
		attribute.String("order.number", cmd.OrderNumber),
		attribute.String("order.target_status", string(cmd.Target)),
	)
	defer func() { probe.End(err) }()

	if !cmd.Caller.IsAdmin() {
		return nil, apperror.Forbidden("ADMIN_REQUIRED", "only admins may change order status")
	}
	if cmd.Target == domorder.StatusCancelled {
		return nil, apperror.Validation("USE_CANCEL", "cancel orders through the cancel operation")
	}
	if _, err := domorder.ToStatus(string(cmd.Target)); err != nil {
		return nil, apperror.Validation("INVALID_STATUS", err.Error())
	}

	o, err := LoadForCaller(ctx, uc.repo, cmd.OrderNumber, cmd.Caller)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := o.TransitionTo(cmd.Target, cmd.TrackingNumber); err != nil {
		return nil, apperror.Classify(err)
	}
	if err := uc.repo.Update(ctx, o); err != nil {
		probe.Fail("ORDER_UPDATE_FAILED")
		return nil, wrapRepositoryError(err, "ORDER_SAVE_FAILED", "save order")
	}

	probe.Field("from", string(from))
	probe.Field("to", string(o.Status))
	return o, nil
}
