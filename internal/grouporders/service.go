// Package grouporders maintains group orders and the participations pooled
// into them. Every participation change recomputes the order total from the
// persisted participations and commits it under an optimistic version check.
package grouporders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/internal/catalog"
	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/pkg/checkout"
	dbpkg "github.com/kiranahub/kiranahub-backend/pkg/db"
	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/metrics"
	"github.com/kiranahub/kiranahub-backend/pkg/outbox"
	"github.com/kiranahub/kiranahub-backend/pkg/pagination"
)

const (
	opCreate     = "create"
	opSubmit     = "submit"
	opRemove     = "remove"
	opTransition = "transition"

	lockResource = "group_order"

	participationUniqueConstraint = "ux_order_participations_order_vendor"

	defaultMaxAttempts = 5
)

// Service defines the group order operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
	ListOrders(ctx context.Context, input ListOrdersInput) (*OrderPage, error)
	SubmitParticipation(ctx context.Context, input SubmitParticipationInput) (*SubmitResult, error)
	RemoveParticipation(ctx context.Context, input RemoveParticipationInput) (*OrderView, error)
	TransitionStatus(ctx context.Context, input TransitionInput) (*OrderView, error)
}

// ServiceParams carries the service collaborators. Locker and Metrics are optional.
type ServiceParams struct {
	Repository   Repository
	Tx           txRunner
	Catalog      catalog.Service
	Outbox       outboxPublisher
	Locker       Locker
	Metrics      *metrics.GroupOrderMetrics
	Logger       *logger.Logger
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	catalog      catalog.Service
	outbox       outboxPublisher
	locker       Locker
	metrics      *metrics.GroupOrderMetrics
	logg         *logger.Logger
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

// NewService builds the group order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("group order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:         params.Repository,
		tx:           params.Tx,
		catalog:      params.Catalog,
		outbox:       params.Outbox,
		locker:       params.Locker,
		metrics:      params.Metrics,
		logg:         params.Logger,
		maxAttempts:  maxAttempts,
		retryBackoff: params.RetryBackoff,
		now:          now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (view *OrderView, err error) {
	defer func() { s.metrics.ObserveWrite(opCreate, metrics.OutcomeFor(err), 1) }()

	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	now := s.now()
	order := models.GroupOrder{
		ID:                uuid.New(),
		SupplierID:        input.SupplierID,
		ClusterID:         input.ClusterID,
		CreatedByVendorID: input.VendorID,
		Status:            enums.GroupOrderStatusPending,
		TotalAmount:       decimal.Zero,
		BaseTotalAmount:   decimal.Zero,
		Version:           1,
		Notes:             input.Notes,
		StatusChangedAt:   &now,
		CreatedAt:         now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrder(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group order")
		}
		var cluster *string
		if order.ClusterID != nil {
			value := order.ClusterID.String()
			cluster = &value
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupOrderCreated,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Actor:         outbox.VendorActor(input.VendorID),
			Data: outbox.OrderCreatedEvent{
				GroupOrderID: order.ID.String(),
				SupplierID:   order.SupplierID.String(),
				ClusterID:    cluster,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "group order created")
	return orderView(order, nil), nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	participations, err := s.repo.ListParticipations(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participations")
	}
	view := orderView(*order, participations)

	stored := decimal.Zero
	for _, p := range participations {
		stored = stored.Add(p.TotalAmount)
	}
	if !order.TotalAmount.Equal(stored) {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"group_order_id": orderID.String(),
			"stored_total":   pricing.FormatMoney(order.TotalAmount),
			"derived_total":  pricing.FormatMoney(stored),
		}), "group order total differs from participations")
	}
	return view, nil
}

// ListOrders pages through orders newest first. Each order's summary is
// recomputed from its participations.
func (s *service) ListOrders(ctx context.Context, input ListOrdersInput) (*OrderPage, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]string{"field": "status"})
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"field": "cursor"})
	}

	filter := ListFilter{
		SupplierID: input.SupplierID,
		ClusterID:  input.ClusterID,
		Status:     input.Status,
		After:      cursor,
	}
	rows, err := s.repo.ListOrders(ctx, filter, pagination.LimitWithBuffer(input.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list group orders")
	}

	rows, next := pagination.Split(rows, input.Limit, func(o models.GroupOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	page := &OrderPage{Orders: make([]*OrderView, 0, len(rows))}
	for _, row := range rows {
		page.Orders = append(page.Orders, orderView(row, row.Participations))
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// SubmitParticipation prices the cart at current catalog prices, then joins the
// order or replaces the vendor's existing participation wholesale.
func (s *service) SubmitParticipation(ctx context.Context, input SubmitParticipationInput) (*SubmitResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if err := pricing.ValidateCart(input.Lines); err != nil {
		s.metrics.ObserveWrite(opSubmit, metrics.OutcomeFor(err), 0)
		return nil, err
	}

	items, err := s.catalog.GetItems(ctx, pricing.ItemIDs(input.Lines))
	if err != nil {
		s.metrics.ObserveWrite(opSubmit, metrics.OutcomeFor(err), 0)
		return nil, err
	}
	quotes, summary, err := pricing.PriceCart(items, input.Lines)
	if err != nil {
		s.metrics.ObserveWrite(opSubmit, metrics.OutcomeFor(err), 0)
		return nil, err
	}
	admission := admissionLines(items, input.Lines)
	if err := checkout.ValidateMOQ(admission); err != nil {
		s.metrics.ObserveWrite(opSubmit, metrics.OutcomeFor(err), 0)
		return nil, err
	}

	ctx = s.logg.WithVendorID(ctx, input.VendorID.String())
	var result *SubmitResult
	err = s.write(ctx, opSubmit, input.OrderID, func(tx *gorm.DB, repo Repository, order *models.GroupOrder) error {
		if !order.Status.AcceptsParticipants() {
			return notAccepting(order)
		}
		if err := checkout.ValidateSupplier(admission, order.SupplierID); err != nil {
			return err
		}

		change := enums.ParticipationJoined
		existing, err := repo.FindParticipation(ctx, order.ID, input.VendorID)
		switch {
		case err == nil:
			change = enums.ParticipationReplaced
			if err := repo.DeleteParticipation(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete previous participation")
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participation")
		}

		participation := models.OrderParticipation{
			GroupOrderID:    order.ID,
			VendorID:        input.VendorID,
			TotalAmount:     summary.TotalAmount,
			BaseTotalAmount: summary.BaseTotal,
			Lines:           lineRows(quotes),
			SubmittedAt:     s.now(),
		}
		if err := repo.CreateParticipation(ctx, &participation); err != nil {
			if dbpkg.IsUniqueViolation(err, participationUniqueConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeWriteConflict, err, "participation written concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participation")
		}

		view, err := s.recompute(ctx, repo, order)
		if err != nil {
			return err
		}
		vendorSummary := summary
		if err := s.emitParticipationChange(ctx, tx, view, input.VendorID, change, &vendorSummary); err != nil {
			return err
		}
		result = &SubmitResult{Change: change, Order: view}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveParticipation(ctx context.Context, input RemoveParticipationInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	ctx = s.logg.WithVendorID(ctx, input.VendorID.String())
	var result *OrderView
	err := s.write(ctx, opRemove, input.OrderID, func(tx *gorm.DB, repo Repository, order *models.GroupOrder) error {
		if !order.Status.AcceptsParticipants() {
			return notAccepting(order)
		}
		existing, err := repo.FindParticipation(ctx, order.ID, input.VendorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "participation not found").
					WithDetails(map[string]any{"vendor_id": input.VendorID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participation")
		}
		if err := repo.DeleteParticipation(ctx, existing.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete participation")
		}

		view, err := s.recompute(ctx, repo, order)
		if err != nil {
			return err
		}
		if err := s.emitParticipationChange(ctx, tx, view, input.VendorID, enums.ParticipationRemoved, nil); err != nil {
			return err
		}
		result = view
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionStatus applies a supplier-driven status change. Requesting the
// current status is a no-op.
func (s *service) TransitionStatus(ctx context.Context, input TransitionInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "supplier identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status").
			WithDetails(map[string]any{"status": string(input.Target)})
	}

	var result *OrderView
	err := s.write(ctx, opTransition, input.OrderID, func(tx *gorm.DB, repo Repository, order *models.GroupOrder) error {
		if order.SupplierID != input.SupplierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another supplier")
		}
		participations, err := repo.ListParticipations(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participations")
		}
		if order.Status == input.Target {
			result = orderView(*order, participations)
			return nil
		}
		if !order.Status.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{"from": string(order.Status), "to": string(input.Target)})
		}

		from := order.Status
		changedAt := s.now()
		ok, err := repo.UpdateStatus(ctx, order.ID, order.Version, input.Target, changedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order status")
		}
		if !ok {
			return versionConflict(order)
		}
		order.Status = input.Target
		order.StatusChangedAt = &changedAt
		order.Version++

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupOrderStatusChanged,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SupplierActor(input.SupplierID),
			Data: outbox.StatusChangedEvent{
				GroupOrderID: order.ID.String(),
				From:         from,
				To:           input.Target,
				OrderVersion: order.Version,
			},
		}); err != nil {
			return err
		}
		result = orderView(*order, participations)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type writeFunc func(tx *gorm.DB, repo Repository, order *models.GroupOrder) error

// write runs fn in a fresh transaction per attempt, retrying only on write
// conflicts. fn re-reads everything it depends on, so a retry is a full redo.
func (s *service) write(ctx context.Context, op string, orderID uuid.UUID, fn writeFunc) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	attempts := 0
	run := func(ctx context.Context) error {
		for {
			attempts++
			err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				repo := s.repo.WithTx(tx)
				order, err := loadOrder(ctx, repo, orderID)
				if err != nil {
					return err
				}
				return fn(tx, repo, order)
			})
			if err == nil || !pkgerrors.IsWriteConflict(err) {
				return err
			}
			s.metrics.IncConflict()
			if attempts >= s.maxAttempts {
				s.logg.Warn(s.logg.WithField(ctx, "attempts", attempts), "group order write conflict, giving up")
				return err
			}
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempts), "group order write conflict, retrying")
			if err := s.sleep(ctx, attempts); err != nil {
				return err
			}
		}
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, s.locker.Key(lockResource, orderID.String()), run)
		if err != nil && pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire group order lock")
		}
	} else {
		err = run(ctx)
	}
	s.metrics.ObserveWrite(op, metrics.OutcomeFor(err), attempts)
	return err
}

func (s *service) sleep(ctx context.Context, attempt int) error {
	if s.retryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.retryBackoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recompute derives the order totals from the persisted participations and
// commits them under the version read at the start of the attempt.
func (s *service) recompute(ctx context.Context, repo Repository, order *models.GroupOrder) (*OrderView, error) {
	participations, err := repo.ListParticipations(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participations")
	}
	total := decimal.Zero
	baseTotal := decimal.Zero
	for _, p := range participations {
		total = total.Add(p.TotalAmount)
		baseTotal = baseTotal.Add(p.BaseTotalAmount)
	}

	ok, err := repo.UpdateTotals(ctx, order.ID, order.Version, total, baseTotal)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order totals")
	}
	if !ok {
		return nil, versionConflict(order)
	}
	order.TotalAmount = total
	order.BaseTotalAmount = baseTotal
	order.Version++

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"participations": len(participations),
		"total":          pricing.FormatMoney(total),
		"version":        order.Version,
	}), "group order totals recomputed")
	return orderView(*order, participations), nil
}

func (s *service) emitParticipationChange(ctx context.Context, tx *gorm.DB, view *OrderView, vendorID uuid.UUID, change enums.ParticipationChange, vendor *pricing.Summary) error {
	data := outbox.ParticipationChangedEvent{
		GroupOrderID:   view.ID.String(),
		VendorID:       vendorID.String(),
		Change:         change,
		OrderVersion:   view.Version,
		OrderTotal:     pricing.FormatMoney(view.Summary.TotalAmount),
		OrderBaseTotal: pricing.FormatMoney(view.Summary.BaseTotal),
	}
	if vendor != nil {
		data.VendorTotal = pricing.FormatMoney(vendor.TotalAmount)
		data.VendorBaseTotal = pricing.FormatMoney(vendor.BaseTotal)
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGroupOrderParticipationChanged,
		AggregateType: enums.AggregateGroupOrder,
		AggregateID:   view.ID,
		Actor:         outbox.VendorActor(vendorID),
		Data:          data,
	})
}

func loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.GroupOrder, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group order not found").
				WithDetails(map[string]any{"order_id": orderID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
	}
	return order, nil
}

func notAccepting(order *models.GroupOrder) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "group order no longer accepts participation changes").
		WithDetails(map[string]any{"status": string(order.Status)})
}

func versionConflict(order *models.GroupOrder) error {
	return pkgerrors.New(pkgerrors.CodeWriteConflict, "group order changed concurrently").
		WithDetails(map[string]any{"order_id": order.ID.String(), "version": order.Version})
}
