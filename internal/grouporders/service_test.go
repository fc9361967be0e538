package grouporders

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/internal/catalog"
	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/pkg/checkout"
	dbpkg "github.com/kiranahub/kiranahub-backend/pkg/db"
	"github.com/kiranahub/kiranahub-backend/pkg/db/dbtest"
	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/metrics"
	"github.com/kiranahub/kiranahub-backend/pkg/outbox"
)

type harness struct {
	conn     *gorm.DB
	svc      Service
	reg      *prometheus.Registry
	supplier uuid.UUID
	rice     models.CatalogItem
	dal      models.CatalogItem
	bulkOil  models.CatalogItem
}

type harnessOption func(*ServiceParams)

func newHarness(t *testing.T, opts ...harnessOption) harness {
	t.Helper()
	conn := dbtest.Open(t)
	supplier := uuid.New()
	rice := dbtest.SeedItem(t, conn, supplier, "100", 1,
		dbtest.TierSeed{MinQty: 10, UnitPrice: "90"},
		dbtest.TierSeed{MinQty: 25, UnitPrice: "80"},
		dbtest.TierSeed{MinQty: 50, UnitPrice: "70"},
	)
	dal := dbtest.SeedItem(t, conn, supplier, "80", 1)
	bulkOil := dbtest.SeedItem(t, conn, supplier, "150", 12, dbtest.TierSeed{MinQty: 24, UnitPrice: "140"})

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	params := ServiceParams{
		Repository:  NewRepository(conn),
		Tx:          dbpkg.NewFromGorm(conn),
		Catalog:     catalogSvc,
		Outbox:      outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Metrics:     metrics.NewGroupOrderMetrics(reg),
		Logger:      logger.Nop(),
		MaxAttempts: 3,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return harness{conn: conn, svc: svc, reg: reg, supplier: supplier, rice: rice, dal: dal, bulkOil: bulkOil}
}

func (h harness) createOrder(t *testing.T) *OrderView {
	t.Helper()
	order, err := h.svc.CreateOrder(context.Background(), CreateOrderInput{SupplierID: h.supplier, VendorID: uuid.New()})
	require.NoError(t, err)
	return order
}

func (h harness) submit(t *testing.T, orderID, vendorID uuid.UUID, lines ...pricing.CartLine) *SubmitResult {
	t.Helper()
	result, err := h.svc.SubmitParticipation(context.Background(), SubmitParticipationInput{
		OrderID:  orderID,
		VendorID: vendorID,
		Lines:    lines,
	})
	require.NoError(t, err)
	return result
}

// requireConsistent checks that the stored order total equals the sum of the
// stored participation totals.
func (h harness) requireConsistent(t *testing.T, orderID uuid.UUID) decimal.Decimal {
	t.Helper()
	var order models.GroupOrder
	require.NoError(t, h.conn.Where("id = ?", orderID).First(&order).Error)
	var participations []models.OrderParticipation
	require.NoError(t, h.conn.Where("group_order_id = ?", orderID).Find(&participations).Error)

	sum := decimal.Zero
	for _, p := range participations {
		sum = sum.Add(p.TotalAmount)
	}
	require.Truef(t, order.TotalAmount.Equal(sum), "stored total %s != participations %s", order.TotalAmount, sum)
	return order.TotalAmount
}

func line(item models.CatalogItem, qty int) pricing.CartLine {
	return pricing.CartLine{ItemID: item.ID, Quantity: qty}
}

func TestJoinThenEditRecomputesOrderTotal(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	assert.Equal(t, enums.GroupOrderStatusPending, order.Status)
	assert.True(t, order.Summary.TotalAmount.IsZero())

	p1, p2 := uuid.New(), uuid.New()

	joined := h.submit(t, order.ID, p1, line(h.rice, 30))
	assert.Equal(t, enums.ParticipationJoined, joined.Change)
	assert.Equal(t, "2400.00", pricing.FormatMoney(joined.Order.Summary.TotalAmount))

	joined = h.submit(t, order.ID, p2, line(h.dal, 20))
	assert.Equal(t, enums.ParticipationJoined, joined.Change)
	assert.Equal(t, "4000.00", pricing.FormatMoney(joined.Order.Summary.TotalAmount))
	assert.Equal(t, "4000.00", pricing.FormatMoney(h.requireConsistent(t, order.ID)))

	edited := h.submit(t, order.ID, p2, line(h.rice, 20))
	assert.Equal(t, enums.ParticipationReplaced, edited.Change)
	assert.Equal(t, "4200.00", pricing.FormatMoney(edited.Order.Summary.TotalAmount))
	assert.Equal(t, "4200.00", pricing.FormatMoney(h.requireConsistent(t, order.ID)))
	require.Len(t, edited.Order.Participations, 2)

	view, ok := edited.Order.Participation(p2)
	require.True(t, ok)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, h.rice.ID, view.Lines[0].ItemID)
	assert.Equal(t, "1800.00", pricing.FormatMoney(view.Summary.TotalAmount))
	assert.Equal(t, "200.00", pricing.FormatMoney(view.Summary.SavingsAmount))

	var lineCount int64
	require.NoError(t, h.conn.Model(&models.ParticipationLine{}).Count(&lineCount).Error)
	assert.Equal(t, int64(2), lineCount, "replaced participation lines must be removed")

	read, err := h.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "4200.00", pricing.FormatMoney(read.Summary.TotalAmount))
	assert.Equal(t, "5000.00", pricing.FormatMoney(read.Summary.BaseTotal))
	assert.Equal(t, "800.00", pricing.FormatMoney(read.Summary.SavingsAmount))
	assert.Equal(t, "16.0", pricing.FormatPercent(read.Summary.SavingsPercent))
	assert.Equal(t, 4, read.Version)
}

func TestSubmitFreezesAppliedTier(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	vendor := uuid.New()

	h.submit(t, order.ID, vendor, line(h.rice, 25), line(h.dal, 3))

	read, err := h.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	view, ok := read.Participation(vendor)
	require.True(t, ok)
	require.Len(t, view.Lines, 2)
	require.NotNil(t, view.Lines[0].AppliedTier)
	assert.Equal(t, 25, view.Lines[0].AppliedTier.MinimumQuantity)
	assert.Equal(t, "80.00", pricing.FormatMoney(view.Lines[0].UnitPrice))
	assert.Nil(t, view.Lines[1].AppliedTier)
	assert.Equal(t, "240.00", pricing.FormatMoney(view.Lines[1].LineTotal))
}

func TestSubmitAdmissionChecks(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	vendor := uuid.New()
	ctx := context.Background()

	_, err := h.svc.SubmitParticipation(ctx, SubmitParticipationInput{OrderID: order.ID, VendorID: vendor})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "empty cart")

	_, err = h.svc.SubmitParticipation(ctx, SubmitParticipationInput{
		OrderID: order.ID, VendorID: vendor, Lines: []pricing.CartLine{line(h.bulkOil, 6)},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code(), "below moq")
	violations := typed.Details().(map[string]any)["violations"].([]checkout.MOQViolation)
	require.Len(t, violations, 1)
	require.Equal(t, 12, violations[0].RequiredQty)

	foreign := dbtest.SeedItem(t, h.conn, uuid.New(), "10", 1)
	_, err = h.svc.SubmitParticipation(ctx, SubmitParticipationInput{
		OrderID: order.ID, VendorID: vendor, Lines: []pricing.CartLine{line(foreign, 5)},
	})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "foreign supplier")

	_, err = h.svc.SubmitParticipation(ctx, SubmitParticipationInput{
		OrderID: uuid.New(), VendorID: vendor, Lines: []pricing.CartLine{line(h.rice, 5)},
	})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err), "unknown order")

	_, err = h.svc.SubmitParticipation(ctx, SubmitParticipationInput{
		OrderID: order.ID, VendorID: vendor, Lines: []pricing.CartLine{{ItemID: uuid.New(), Quantity: 5}},
	})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err), "unknown item")

	h.submit(t, order.ID, vendor, line(h.bulkOil, 12))
	h.requireConsistent(t, order.ID)
}

func TestParticipationChangesRequirePendingOrder(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	vendor := uuid.New()
	h.submit(t, order.ID, vendor, line(h.rice, 10))

	_, err := h.svc.TransitionStatus(context.Background(), TransitionInput{
		OrderID: order.ID, SupplierID: h.supplier, Target: enums.GroupOrderStatusConfirmed,
	})
	require.NoError(t, err)

	_, err = h.svc.SubmitParticipation(context.Background(), SubmitParticipationInput{
		OrderID: order.ID, VendorID: uuid.New(), Lines: []pricing.CartLine{line(h.rice, 10)},
	})
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	_, err = h.svc.RemoveParticipation(context.Background(), RemoveParticipationInput{OrderID: order.ID, VendorID: vendor})
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	assert.Equal(t, "900.00", pricing.FormatMoney(h.requireConsistent(t, order.ID)))
}

func TestRemoveParticipation(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	p1, p2 := uuid.New(), uuid.New()
	h.submit(t, order.ID, p1, line(h.rice, 30))
	h.submit(t, order.ID, p2, line(h.dal, 20))

	view, err := h.svc.RemoveParticipation(context.Background(), RemoveParticipationInput{OrderID: order.ID, VendorID: p1})
	require.NoError(t, err)
	assert.Equal(t, "1600.00", pricing.FormatMoney(view.Summary.TotalAmount))
	require.Len(t, view.Participations, 1)
	assert.Equal(t, "1600.00", pricing.FormatMoney(h.requireConsistent(t, order.ID)))

	_, err = h.svc.RemoveParticipation(context.Background(), RemoveParticipationInput{OrderID: order.ID, VendorID: p1})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	var lines []models.ParticipationLine
	require.NoError(t, h.conn.Find(&lines).Error)
	require.Len(t, lines, 1)
}

func TestTransitionStatus(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	ctx := context.Background()

	transition := func(target enums.GroupOrderStatus) (*OrderView, error) {
		return h.svc.TransitionStatus(ctx, TransitionInput{OrderID: order.ID, SupplierID: h.supplier, Target: target})
	}

	_, err := h.svc.TransitionStatus(ctx, TransitionInput{OrderID: order.ID, SupplierID: uuid.New(), Target: enums.GroupOrderStatusConfirmed})
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = transition("shipped")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = transition(enums.GroupOrderStatusReady)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err), "skipping states")

	for _, next := range []enums.GroupOrderStatus{
		enums.GroupOrderStatusConfirmed,
		enums.GroupOrderStatusPreparing,
		enums.GroupOrderStatusReady,
	} {
		view, err := transition(next)
		require.NoError(t, err)
		require.Equal(t, next, view.Status)
	}

	view, err := transition(enums.GroupOrderStatusReady)
	require.NoError(t, err, "repeating the current status is a no-op")
	assert.Equal(t, 4, view.Version)

	_, err = transition(enums.GroupOrderStatusPreparing)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err), "no backward moves")

	view, err = transition(enums.GroupOrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupOrderStatusCancelled, view.Status)
	require.NotNil(t, view.StatusChangedAt)

	_, err = transition(enums.GroupOrderStatusDelivered)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err), "terminal")
}

func TestWritesEmitOutboxEvents(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	vendor := uuid.New()
	h.submit(t, order.ID, vendor, line(h.rice, 10))
	h.submit(t, order.ID, vendor, line(h.rice, 12))
	_, err := h.svc.RemoveParticipation(context.Background(), RemoveParticipationInput{OrderID: order.ID, VendorID: vendor})
	require.NoError(t, err)
	_, err = h.svc.TransitionStatus(context.Background(), TransitionInput{OrderID: order.ID, SupplierID: h.supplier, Target: enums.GroupOrderStatusCancelled})
	require.NoError(t, err)

	counts := map[enums.OutboxEventType]int{}
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("aggregate_id = ?", order.ID).Find(&rows).Error)
	for _, row := range rows {
		counts[row.EventType]++
	}
	assert.Equal(t, 1, counts[enums.EventGroupOrderCreated])
	assert.Equal(t, 3, counts[enums.EventGroupOrderParticipationChanged])
	assert.Equal(t, 1, counts[enums.EventGroupOrderStatusChanged])
}

func TestFailedWriteLeavesNoTrace(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Outbox = failingOutbox{}
	})
	var order models.GroupOrder
	order.ID = uuid.New()
	order.SupplierID = h.supplier
	order.CreatedByVendorID = uuid.New()
	order.Status = enums.GroupOrderStatusPending
	order.Version = 1
	require.NoError(t, h.conn.Create(&order).Error)

	_, err := h.svc.SubmitParticipation(context.Background(), SubmitParticipationInput{
		OrderID: order.ID, VendorID: uuid.New(), Lines: []pricing.CartLine{line(h.rice, 10)},
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, h.conn.Model(&models.OrderParticipation{}).Count(&count).Error)
	assert.Zero(t, count)
	h.requireConsistent(t, order.ID)
}

func TestSubmitRetriesOnWriteConflict(t *testing.T) {
	var conflicts int32 = 2
	h := newHarness(t, func(p *ServiceParams) {
		p.Repository = &conflictingRepo{Repository: p.Repository, remaining: &conflicts}
	})
	order := h.createOrder(t)

	result := h.submit(t, order.ID, uuid.New(), line(h.rice, 30))
	assert.Equal(t, "2400.00", pricing.FormatMoney(result.Order.Summary.TotalAmount))
	assert.Equal(t, "2400.00", pricing.FormatMoney(h.requireConsistent(t, order.ID)))
	assert.Equal(t, float64(2), counterValue(t, h.reg, "group_order_write_conflicts_total", nil))
	assert.Equal(t, float64(1), counterValue(t, h.reg, "group_order_writes_total", map[string]string{"op": opSubmit, "outcome": metrics.OutcomeOK}))

	var count int64
	require.NoError(t, h.conn.Model(&models.OrderParticipation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "conflicting attempts must roll back their inserts")
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	var conflicts int32 = 100
	h := newHarness(t, func(p *ServiceParams) {
		p.Repository = &conflictingRepo{Repository: p.Repository, remaining: &conflicts}
		p.RetryBackoff = time.Millisecond
	})
	order := h.createOrder(t)

	_, err := h.svc.SubmitParticipation(context.Background(), SubmitParticipationInput{
		OrderID: order.ID, VendorID: uuid.New(), Lines: []pricing.CartLine{line(h.rice, 30)},
	})
	require.True(t, pkgerrors.IsWriteConflict(err))
	assert.Equal(t, int32(97), atomic.LoadInt32(&conflicts))
	assert.Equal(t, float64(1), counterValue(t, h.reg, "group_order_writes_total", map[string]string{"op": opSubmit, "outcome": "conflict"}))
	assert.True(t, h.requireConsistent(t, order.ID).IsZero())
}

func TestConcurrentJoinsAreAllReflected(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	const vendors = 8
	var wg sync.WaitGroup
	errs := make(chan error, vendors)
	for i := 0; i < vendors; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			_, err := h.svc.SubmitParticipation(context.Background(), SubmitParticipationInput{
				OrderID:  order.ID,
				VendorID: uuid.New(),
				Lines:    []pricing.CartLine{line(h.dal, qty)},
			})
			errs <- err
		}(i + 1)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 80 * (1 + 2 + ... + 8)
	assert.Equal(t, "2880.00", pricing.FormatMoney(h.requireConsistent(t, order.ID)))
	read, err := h.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, read.Participations, vendors)
	assert.Equal(t, 1+vendors, read.Version)
}

func TestRandomOperationSequencesStayConsistent(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	rng := rand.New(rand.NewSource(42))
	vendors := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	items := []models.CatalogItem{h.rice, h.dal, h.bulkOil}

	for step := 0; step < 40; step++ {
		vendor := vendors[rng.Intn(len(vendors))]
		if rng.Intn(4) == 0 {
			_, err := h.svc.RemoveParticipation(context.Background(), RemoveParticipationInput{OrderID: order.ID, VendorID: vendor})
			if err != nil {
				require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err), "step %d", step)
			}
		} else {
			picked := rng.Perm(len(items))[:1+rng.Intn(len(items))]
			var lines []pricing.CartLine
			for _, idx := range picked {
				item := items[idx]
				lines = append(lines, line(item, item.MinimumOrderQuantity+rng.Intn(60)))
			}
			h.submit(t, order.ID, vendor, lines...)
		}

		stored := h.requireConsistent(t, order.ID)
		read, err := h.svc.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		require.Truef(t, stored.Equal(read.Summary.TotalAmount), "step %d: stored %s, derived %s", step, stored, read.Summary.TotalAmount)
	}
}

func TestWritesHoldOrderLock(t *testing.T) {
	locker := &recordingLocker{}
	h := newHarness(t, func(p *ServiceParams) {
		p.Locker = locker
	})
	order := h.createOrder(t)
	h.submit(t, order.ID, uuid.New(), line(h.rice, 10))

	require.Equal(t, []string{fmt.Sprintf("group_order:%s", order.ID)}, locker.keys)
}

func TestLockFailureIsDependencyError(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Locker = &recordingLocker{err: context.DeadlineExceeded}
	})
	order := h.createOrder(t)

	_, err := h.svc.SubmitParticipation(context.Background(), SubmitParticipationInput{
		OrderID: order.ID, VendorID: uuid.New(), Lines: []pricing.CartLine{line(h.rice, 10)},
	})
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

type conflictingRepo struct {
	Repository
	remaining *int32
}

func (r *conflictingRepo) WithTx(tx *gorm.DB) Repository {
	return &conflictingRepo{Repository: r.Repository.WithTx(tx), remaining: r.remaining}
}

func (r *conflictingRepo) UpdateTotals(ctx context.Context, orderID uuid.UUID, expectedVersion int, total, baseTotal decimal.Decimal) (bool, error) {
	if atomic.AddInt32(r.remaining, -1) >= 0 {
		return false, nil
	}
	return r.Repository.UpdateTotals(ctx, orderID, expectedVersion, total, baseTotal)
}

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "outbox unavailable")
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *recordingLocker) Key(resource, id string) string {
	return resource + ":" + id
}

func (l *recordingLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
