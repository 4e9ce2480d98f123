package store_test

import (
	"context"
	"testing"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/outbox"
	"tariconnect/internal/domain/plans"
	"tariconnect/internal/domain/settings"
	"tariconnect/internal/domain/subscriptions"
	"tariconnect/internal/domain/trials"
	"tariconnect/internal/domain/users"
	"tariconnect/internal/store"
	"tariconnect/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*store.Store, *storetest.Clock) {
	t.Helper()
	clock := storetest.NewClock(t0)
	return storetest.New(t, clock), clock
}

func TestGetOrCreateSubscription_ProvisionsTrial(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.GetSubscription(ctx, "u1")
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	sub, err := s.GetOrCreateSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sub.IsTrial)
	assert.Equal(t, subscriptions.StatusActive, sub.Status)
	assert.WithinDuration(t, sub.StartDate.Add(14*24*time.Hour), sub.EndDate, time.Second)

	trial, err := s.GetTrial(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, trials.StatusActive, trial.Status)
	assert.WithinDuration(t, sub.EndDate, trial.EndDate, time.Second)

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, users.RoleUser, u.Role)

	again, err := s.GetOrCreateSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.WithinDuration(t, sub.StartDate, again.StartDate, time.Second)
}

func TestProvisionAccount_DoesNotResetExisting(t *testing.T) {
	s, clock := setup(t)
	ctx := context.Background()

	_, err := s.ProvisionAccount(ctx, users.User{ID: "u1", Email: "a@b.co"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateSubscription(ctx, "u1", map[string]any{"status": subscriptions.StatusPending}))

	clock.Advance(time.Hour)
	sub, err := s.ProvisionAccount(ctx, users.User{ID: "u1", Name: "Amina"})
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPending, sub.Status)

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", u.Email)
	assert.Equal(t, "Amina", u.Name)
}

func TestPayments_CreateUpdateList(t *testing.T) {
	s, clock := setup(t)
	ctx := context.Background()

	first := &billing.Payment{UserID: "u1", PlanID: "starter", Amount: 2900, Currency: "KSh", Method: billing.MethodMpesa}
	id1, err := s.CreatePayment(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, billing.NewPaymentID("u1", t0), id1)

	clock.Advance(time.Minute)
	id2, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", PlanID: "pro", Amount: 5900, Currency: "KSh", Method: billing.MethodPaystack})
	require.NoError(t, err)

	got, err := s.GetPayment(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentPending, got.Status)

	clock.Advance(time.Minute)
	checkout := "ws_CO_1"
	require.NoError(t, s.UpdatePayment(ctx, id1, map[string]any{"checkout_request_id": checkout}))
	got, err = s.GetPayment(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, got.CheckoutRequestID)
	assert.Equal(t, checkout, *got.CheckoutRequestID)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	assert.Equal(t, int64(2900), got.Amount)

	byCheckout, err := s.FindPaymentByCheckoutRequestID(ctx, checkout)
	require.NoError(t, err)
	assert.Equal(t, id1, byCheckout.ID)

	byRef, err := s.FindPaymentByReference(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, id2, byRef.ID)

	list, err := s.ListPaymentsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id2, list[0].ID)
	assert.Equal(t, id1, list[1].ID)

	err = s.UpdatePayment(ctx, "missing", map[string]any{"amount": 1})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreatePayment_SameInstantIsConflict(t *testing.T) {
	s, clock := setup(t)
	ctx := context.Background()

	first, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 2900})
	require.NoError(t, err)
	_, err = s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 5900})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	got, err := s.GetPayment(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2900), got.Amount)
	entries, err := s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	clock.Advance(time.Millisecond)
	second, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 5900})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestPlans_UpsertAndList(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPlan(ctx, &plans.Plan{ID: "pro", Name: "Pro", Price: 5900, Currency: "KSh", BillingPeriod: plans.PeriodMonth, SortOrder: 2}))
	require.NoError(t, s.UpsertPlan(ctx, &plans.Plan{ID: "starter", Name: "Starter", Price: 2900, Currency: "KSh", BillingPeriod: plans.PeriodMonth, Features: []string{"a", "b"}, SortOrder: 1}))
	require.NoError(t, s.UpsertPlan(ctx, &plans.Plan{ID: "pro", Name: "Pro Plus", Price: 6900, Currency: "KSh", BillingPeriod: plans.PeriodMonth, SortOrder: 2}))

	list, err := s.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "starter", list[0].ID)
	assert.Equal(t, []string{"a", "b"}, []string(list[0].Features))
	assert.Equal(t, "Pro Plus", list[1].Name)
	assert.Equal(t, int64(6900), list[1].Price)

	_, err = s.GetPlan(ctx, "enterprise")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPurgeUserData(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.ProvisionAccount(ctx, users.User{ID: "u1"})
	require.NoError(t, err)
	_, err = s.ProvisionAccount(ctx, users.User{ID: "u2"})
	require.NoError(t, err)
	pid, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 10})
	require.NoError(t, err)
	p, err := s.GetPayment(ctx, pid)
	require.NoError(t, err)
	inv := billing.NewInvoice(*p, "month", billing.Customer{}, t0)
	require.NoError(t, s.CreateInvoice(ctx, &inv))
	require.NoError(t, s.SaveMetaSettings(ctx, &settings.MetaSettings{UserID: "u1", AppID: "x"}))

	deleted, err := s.PurgeUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted["subscriptions"])
	assert.Equal(t, int64(1), deleted["payments"])
	assert.Equal(t, int64(1), deleted["invoices"])
	assert.Equal(t, int64(1), deleted["meta_settings"])

	_, err = s.GetSubscription(ctx, "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = s.GetTrial(ctx, "u1")
	assert.NoError(t, err)
	_, err = s.GetSubscription(ctx, "u2")
	assert.NoError(t, err)
}

func TestOutbox_WrittenWithPrimaryRecords(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.ProvisionAccount(ctx, users.User{ID: "u1"})
	require.NoError(t, err)
	_, err = s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 10})
	require.NoError(t, err)

	entries, err := s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, outbox.SubscriptionPath("u1"), entries[0].Path)
	assert.Equal(t, outbox.TrialPath("u1"), entries[1].Path)
	assert.Equal(t, outbox.OpSet, entries[2].Op)
	assert.Less(t, entries[0].ID, entries[1].ID)

	require.NoError(t, s.MarkOutboxMirrored(ctx, entries[0].ID))
	require.NoError(t, s.MarkOutboxAttempt(ctx, entries[1], assert.AnError, 1))

	stats, err := s.OutboxStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Mirrored)
	require.NotNil(t, stats.OldestPending)

	n, dropped, err := s.RequeueFailedOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, dropped)
}

func TestRequeueFailedOutbox_SupersedesOvertakenEntries(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	id, err := s.CreatePayment(ctx, &billing.Payment{UserID: "u1", Amount: 10})
	require.NoError(t, err)
	created, err := s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NoError(t, s.MarkOutboxAttempt(ctx, created[0], assert.AnError, 1))

	require.NoError(t, s.UpdatePayment(ctx, id, map[string]any{"status": billing.PaymentCompleted}))
	updated, err := s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	require.NoError(t, s.MarkOutboxMirrored(ctx, updated[0].ID))

	n, dropped, err := s.RequeueFailedOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), dropped)

	pending, err := s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := s.OutboxStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Superseded)
	assert.Zero(t, stats.Failed)
}

func TestListExpiredTrials(t *testing.T) {
	s, clock := setup(t)
	ctx := context.Background()

	_, err := s.ProvisionAccount(ctx, users.User{ID: "old"})
	require.NoError(t, err)
	clock.Advance(10 * 24 * time.Hour)
	_, err = s.ProvisionAccount(ctx, users.User{ID: "new"})
	require.NoError(t, err)

	expired, err := s.ListExpiredTrials(ctx, t0.Add(15*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].UserID)

	require.NoError(t, s.SetTrialStatus(ctx, "old", trials.StatusConverted))
	expired, err = s.ListExpiredTrials(ctx, t0.Add(15*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
}
