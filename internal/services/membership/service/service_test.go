package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
	"github.com/louisbranch/paywall/internal/platform/telemetry/metrics"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/grant"
	"github.com/louisbranch/paywall/internal/services/membership/policyscript"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"github.com/louisbranch/paywall/internal/services/membership/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *sqlite.Store
	now   time.Time
}

func (f *fixture) clock() time.Time {
	return f.now
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "membership.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	f := &fixture{store: store, now: testNow}
	opts := Options{
		Metrics:       metrics.MustNew(prometheus.NewRegistry()),
		LevelCacheTTL: time.Hour,
		Clock:         f.clock,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = New(store, opts)
	return f
}

func (f *fixture) createLevel(t *testing.T, level domain.Level) domain.Level {
	t.Helper()
	created, err := f.svc.CreateLevel(context.Background(), level)
	if err != nil {
		t.Fatalf("create level %s: %v", level.ID, err)
	}
	return created
}

func goldLevel() domain.Level {
	return domain.Level{
		ID:          "gold",
		Name:        "Gold",
		Duration:    domain.Duration{Count: 1, Unit: domain.DurationUnitMonth},
		Price:       decimal.RequireFromString("10.00"),
		Fee:         decimal.RequireFromString("2.50"),
		AccessLevel: 5,
	}
}

func freeLevel() domain.Level {
	return domain.Level{
		ID:       "free",
		Name:     "Free",
		Duration: domain.Duration{Count: 30, Unit: domain.DurationUnitDay},
	}
}

func trialLevel() domain.Level {
	return domain.Level{
		ID:            "trial",
		Name:          "Trial",
		Duration:      domain.Duration{Count: 1, Unit: domain.DurationUnitMonth},
		TrialDuration: domain.Duration{Count: 7, Unit: domain.DurationUnitDay},
		Price:         decimal.RequireFromString("8.00"),
	}
}

func expiration(t *testing.T, d domain.Duration, from time.Time) time.Time {
	t.Helper()
	at, ok := domain.CalculateExpiration(d, from)
	if !ok {
		t.Fatalf("duration %v has no expiration", d)
	}
	return at
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("error code = %s, want %s (err: %v)", got, want, err)
	}
}

func TestNilServiceReturnsError(t *testing.T) {
	t.Parallel()

	var svc *Service
	if _, err := svc.GetMember(context.Background(), "u1"); err == nil {
		t.Fatal("expected error from nil service")
	}
}

func TestCreateLevelGeneratesIDAndRejectsDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	level := goldLevel()
	level.ID = ""
	created := f.createLevel(t, level)
	if created.ID == "" {
		t.Fatal("expected generated level id")
	}
	if created.Status != domain.LevelStatusActive {
		t.Fatalf("status = %q, want %q", created.Status, domain.LevelStatusActive)
	}
	if !created.CreatedAt.Equal(testNow) {
		t.Fatalf("created at = %v, want %v", created.CreatedAt, testNow)
	}

	_, err := f.svc.CreateLevel(ctx, created)
	assertCode(t, err, apperrors.CodeAlreadyExists)

	invalid := goldLevel()
	invalid.ID = "bad"
	invalid.Name = " "
	_, err = f.svc.CreateLevel(ctx, invalid)
	assertCode(t, err, apperrors.CodeLevelNameEmpty)
}

func TestLevelCacheIsPurgedOnWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())

	levels, err := f.svc.ListLevels(ctx)
	if err != nil {
		t.Fatalf("list levels: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("levels = %d, want 1", len(levels))
	}
	if _, err := f.svc.GetLevel(ctx, "gold"); err != nil {
		t.Fatalf("get level: %v", err)
	}

	update := goldLevel()
	update.Name = "Gold Plus"
	if _, err := f.svc.UpdateLevel(ctx, update); err != nil {
		t.Fatalf("update level: %v", err)
	}
	got, err := f.svc.GetLevel(ctx, "gold")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if got.Name != "Gold Plus" {
		t.Fatalf("name = %q, want %q", got.Name, "Gold Plus")
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Fatalf("created at changed to %v", got.CreatedAt)
	}

	f.createLevel(t, freeLevel())
	levels, err = f.svc.ListLevels(ctx)
	if err != nil {
		t.Fatalf("list levels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}

	_, err = f.svc.GetLevel(ctx, "missing")
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.svc.UpdateLevel(ctx, domain.Level{ID: "missing", Name: "Missing"})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestStartCheckoutFreeLevel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.createLevel(t, freeLevel())

	result, err := f.svc.StartCheckout(context.Background(), CheckoutRequest{UserID: "u1", LevelID: "free"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.Payment != nil {
		t.Fatalf("payment = %+v, want none", result.Payment)
	}
	if result.Member.Status != domain.StatusFree || result.Member.LevelID != "free" {
		t.Fatalf("member = %+v", result.Member)
	}
	want := expiration(t, freeLevel().Duration, testNow)
	if !result.Member.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", result.Member.ExpiresAt, want)
	}
	stored, err := f.svc.GetMember(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if stored.Status != domain.StatusFree {
		t.Fatalf("stored status = %q", stored.Status)
	}
}

func TestPaidCheckoutLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())

	result, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: "u1", LevelID: "gold", Recurring: true})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.Payment == nil {
		t.Fatal("expected pending payment")
	}
	if result.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("payment status = %q", result.Payment.Status)
	}
	if !result.Payment.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("payment amount = %s, want 12.50", result.Payment.Amount)
	}
	if result.Member.Status != domain.StatusPending {
		t.Fatalf("member status = %q, want pending", result.Member.Status)
	}
	if result.Member.LevelID != "" {
		t.Fatalf("pending member level = %q, want unchanged", result.Member.LevelID)
	}

	f.now = testNow.Add(time.Minute)
	paid, err := f.svc.CompletePayment(ctx, result.Payment.ID, "txn-1")
	if err != nil {
		t.Fatalf("complete payment: %v", err)
	}
	if paid.Payment.Status != domain.PaymentStatusComplete || paid.Payment.TransactionID != "txn-1" {
		t.Fatalf("payment = %+v", paid.Payment)
	}
	member := paid.Member
	if member.Status != domain.StatusActive || member.LevelID != "gold" || !member.Recurring {
		t.Fatalf("member = %+v", member)
	}
	want := expiration(t, goldLevel().Duration, f.now)
	if !member.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", member.ExpiresAt, want)
	}
	if !member.LastPaidAt.Equal(f.now) {
		t.Fatalf("last paid at = %v, want %v", member.LastPaidAt, f.now)
	}

	again, err := f.svc.CompletePayment(ctx, result.Payment.ID, "txn-1")
	if err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if !again.Member.ExpiresAt.Equal(want) {
		t.Fatalf("repeat completion changed expiration to %v", again.Member.ExpiresAt)
	}

	_, err = f.svc.FailPayment(ctx, result.Payment.ID)
	assertCode(t, err, apperrors.CodePaymentStatusInvalid)

	payments, err := f.svc.ListMemberPayments(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
}

func TestFailPaymentRevertsPendingMember(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())

	result, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: "u1", LevelID: "gold"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	failed, err := f.svc.FailPayment(ctx, result.Payment.ID)
	if err != nil {
		t.Fatalf("fail payment: %v", err)
	}
	if failed.Payment.Status != domain.PaymentStatusFailed {
		t.Fatalf("payment status = %q", failed.Payment.Status)
	}
	if failed.Member.Status != domain.StatusFree {
		t.Fatalf("member status = %q, want free", failed.Member.Status)
	}

	_, err = f.svc.CompletePayment(ctx, result.Payment.ID, "late")
	assertCode(t, err, apperrors.CodePaymentStatusInvalid)
	_, err = f.svc.CompletePayment(ctx, "pay_missing", "")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestTrialWithoutFeeActivatesImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.createLevel(t, trialLevel())

	result, err := f.svc.StartCheckout(context.Background(), CheckoutRequest{UserID: "u1", LevelID: "trial", Recurring: true})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !result.Quote.TrialEligible || !result.Quote.IsZero() {
		t.Fatalf("quote = %+v", result.Quote)
	}
	if result.Payment == nil || result.Payment.Status != domain.PaymentStatusComplete {
		t.Fatalf("payment = %+v, want complete", result.Payment)
	}
	member := result.Member
	if member.Status != domain.StatusActive || !member.Trialing || !member.HasTrialed {
		t.Fatalf("member = %+v", member)
	}
	want := expiration(t, trialLevel().TrialDuration, testNow)
	if !member.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", member.ExpiresAt, want)
	}

	// A second checkout on the same level is no longer a trial.
	quote, err := f.svc.PreviewQuote(context.Background(), "u1", "trial", "")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if quote.TrialEligible || !quote.InitialTotal.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("quote = %+v", quote)
	}
}

func TestCheckoutWithDiscount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	level := goldLevel()
	level.Fee = decimal.Zero
	f.createLevel(t, level)

	if _, err := f.svc.CreateDiscount(ctx, domain.Discount{
		Code:   "FREEMONTH",
		Amount: decimal.NewFromInt(100),
		Unit:   domain.DiscountUnitPercent,
	}); err != nil {
		t.Fatalf("create discount: %v", err)
	}

	result, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: "u1", LevelID: "gold", DiscountCode: " FreeMonth "})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.Member.Status != domain.StatusActive {
		t.Fatalf("member status = %q, want active", result.Member.Status)
	}
	if result.Quote.DiscountCode != "freemonth" || !result.Quote.DiscountAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("quote = %+v", result.Quote)
	}

	discount, err := f.svc.GetDiscount(ctx, "freemonth")
	if err != nil {
		t.Fatalf("get discount: %v", err)
	}
	if discount.UseCount != 1 {
		t.Fatalf("use count = %d, want 1", discount.UseCount)
	}

	_, err = f.svc.StartCheckout(ctx, CheckoutRequest{UserID: "u1", LevelID: "gold", DiscountCode: "freemonth"})
	assertCode(t, err, apperrors.CodeDiscountAlreadyUsed)

	if _, err := f.svc.DisableDiscount(ctx, "freemonth"); err != nil {
		t.Fatalf("disable discount: %v", err)
	}
	_, err = f.svc.PreviewQuote(ctx, "u2", "gold", "freemonth")
	assertCode(t, err, apperrors.CodeDiscountInactive)

	_, err = f.svc.PreviewQuote(ctx, "u2", "gold", "unknown")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCreateDiscountRequiresKnownLevel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.CreateDiscount(ctx, domain.Discount{
		Code:    "gold5",
		Amount:  decimal.NewFromInt(5),
		Unit:    domain.DiscountUnitFlat,
		LevelID: "gold",
	})
	assertCode(t, err, apperrors.CodeNotFound)

	f.createLevel(t, goldLevel())
	created, err := f.svc.CreateDiscount(ctx, domain.Discount{
		Code:    "gold5",
		Amount:  decimal.NewFromInt(5),
		Unit:    domain.DiscountUnitFlat,
		LevelID: "gold",
	})
	if err != nil {
		t.Fatalf("create discount: %v", err)
	}
	if created.ID == "" || created.Status != domain.DiscountStatusActive {
		t.Fatalf("discount = %+v", created)
	}
	_, err = f.svc.CreateDiscount(ctx, domain.Discount{Code: "gold5", Amount: decimal.NewFromInt(1), Unit: domain.DiscountUnitFlat})
	assertCode(t, err, apperrors.CodeAlreadyExists)

	discounts, err := f.svc.ListDiscounts(ctx)
	if err != nil {
		t.Fatalf("list discounts: %v", err)
	}
	if len(discounts) != 1 {
		t.Fatalf("discounts = %d, want 1", len(discounts))
	}
}

func TestCancelRenewAndExpire(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())
	activate(t, f, "u1")

	cancelled, err := f.svc.CancelMember(ctx, "u1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled || cancelled.Recurring {
		t.Fatalf("cancelled member = %+v", cancelled)
	}

	renewed, err := f.svc.RenewMember(ctx, RenewRequest{UserID: "u1", TransactionID: "txn-r", Amount: decimal.RequireFromString("10")})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if renewed.Member.Status != domain.StatusActive || !renewed.Member.Recurring {
		t.Fatalf("renewed member = %+v", renewed.Member)
	}
	want := expiration(t, goldLevel().Duration, cancelled.ExpiresAt)
	if !renewed.Member.ExpiresAt.Equal(want) {
		t.Fatalf("renewed expires at = %v, want %v", renewed.Member.ExpiresAt, want)
	}
	if renewed.Payment.Kind != domain.PaymentKindRenewal || renewed.Payment.Status != domain.PaymentStatusComplete {
		t.Fatalf("renewal payment = %+v", renewed.Payment)
	}

	expired, err := f.svc.ExpireMember(ctx, "u1")
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired.Status != domain.StatusExpired || expired.Recurring {
		t.Fatalf("expired member = %+v", expired)
	}

	_, err = f.svc.CancelMember(ctx, "u1")
	assertCode(t, err, apperrors.CodeMemberStatusDisallowsOperation)
	_, err = f.svc.CancelMember(ctx, "nobody")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestExpireDue(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())
	activate(t, f, "u1")
	activate(t, f, "u2")

	later := testNow.AddDate(0, 2, 0)
	count, err := f.svc.ExpireDue(ctx, later, 10)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if count != 2 {
		t.Fatalf("expired = %d, want 2", count)
	}
	member, err := f.svc.GetMember(ctx, "u1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.Status != domain.StatusExpired {
		t.Fatalf("status = %q, want expired", member.Status)
	}

	count, err = f.svc.ExpireDue(ctx, later, 10)
	if err != nil {
		t.Fatalf("expire due again: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep expired = %d, want 0", count)
	}
}

func TestListMembersRejectsBadFilter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.svc.ListMembers(context.Background(), storage.ListMembersRequest{Filter: "nope = 1"})
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())
	f.createLevel(t, freeLevel())
	activate(t, f, "gold-user")
	if _, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: "free-user", LevelID: "free"}); err != nil {
		t.Fatalf("free checkout: %v", err)
	}
	if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{
		ContentID: "post-1",
		AuthorID:  "writer",
		Levels:    domain.LevelRequirement{Mode: domain.LevelModeList, LevelIDs: []string{"gold"}},
	}); err != nil {
		t.Fatalf("set restriction: %v", err)
	}

	tests := []struct {
		name      string
		viewer    domain.Viewer
		contentID string
		allowed   bool
		reason    string
	}{
		{name: "unrestricted", viewer: domain.Viewer{}, contentID: "post-open", allowed: true, reason: domain.ReasonAllowUnrestricted},
		{name: "anonymous", viewer: domain.Viewer{}, contentID: "post-1", reason: domain.ReasonDenyNoMembership},
		{name: "stranger", viewer: domain.Viewer{UserID: "stranger"}, contentID: "post-1", reason: domain.ReasonDenyNoMembership},
		{name: "wrong level", viewer: domain.Viewer{UserID: "free-user"}, contentID: "post-1", reason: domain.ReasonDenyLevelRequired},
		{name: "member", viewer: domain.Viewer{UserID: "gold-user"}, contentID: "post-1", allowed: true, reason: domain.ReasonAllowMembership},
		{name: "author", viewer: domain.Viewer{UserID: "writer"}, contentID: "post-1", allowed: true, reason: domain.ReasonAllowAuthor},
		{name: "admin", viewer: domain.Viewer{UserID: "root", IsAdmin: true}, contentID: "post-1", allowed: true, reason: domain.ReasonAllowAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: tt.viewer, ContentID: tt.contentID})
			if err != nil {
				t.Fatalf("check access: %v", err)
			}
			if result.Decision.Allowed != tt.allowed || result.Decision.ReasonCode != tt.reason {
				t.Fatalf("decision = %+v, want allowed=%v reason=%s", result.Decision, tt.allowed, tt.reason)
			}
		})
	}

	_, err := f.svc.CheckAccess(ctx, AccessRequest{ContentID: " "})
	assertCode(t, err, apperrors.CodeInvalidArgument)
}

func TestCheckAccessHonorsTermRestrictions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())
	activate(t, f, "u1")
	if _, err := f.svc.SetTermRestriction(ctx, domain.TermRestriction{TermID: "premium", AccessLevel: 7}); err != nil {
		t.Fatalf("set term: %v", err)
	}
	if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{ContentID: "post-1", TermIDs: []string{"premium"}}); err != nil {
		t.Fatalf("set restriction: %v", err)
	}

	result, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u1"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if result.Decision.Allowed || result.Decision.ReasonCode != domain.ReasonDenyTermRestricted {
		t.Fatalf("decision = %+v", result.Decision)
	}

	if _, err := f.svc.SetTermRestriction(ctx, domain.TermRestriction{TermID: "premium"}); err != nil {
		t.Fatalf("clear term: %v", err)
	}
	result, err = f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u1"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !result.Decision.Allowed {
		t.Fatalf("decision = %+v, want allowed", result.Decision)
	}
}

func TestCheckAccessIssuesVerifiableGrant(t *testing.T) {
	t.Parallel()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := newFixture(t, func(opts *Options) {
		opts.GrantsEnabled = true
		opts.Grants = grant.Config{
			Issuer:     "paywall",
			Audience:   "content",
			PrivateKey: private,
			PublicKey:  public,
			TTL:        15 * time.Minute,
		}
	})
	ctx := context.Background()
	f.createLevel(t, goldLevel())
	activate(t, f, "u1")
	if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{ContentID: "post-1", PaidOnly: true}); err != nil {
		t.Fatalf("set restriction: %v", err)
	}

	result, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u1"}, ContentID: "post-1", IssueGrant: true})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if result.Grant == "" {
		t.Fatal("expected grant")
	}
	claims, err := f.svc.VerifyGrant(ctx, result.Grant, "post-1")
	if err != nil {
		t.Fatalf("verify grant: %v", err)
	}
	if claims.UserID != "u1" || claims.LevelID != "gold" {
		t.Fatalf("claims = %+v", claims)
	}
	_, err = f.svc.VerifyGrant(ctx, result.Grant, "post-2")
	assertCode(t, err, apperrors.CodeGrantMismatch)

	denied, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u2"}, ContentID: "post-1", IssueGrant: true})
	if err != nil {
		t.Fatalf("check denied access: %v", err)
	}
	if denied.Grant != "" {
		t.Fatal("denied decision carried a grant")
	}
}

func TestCheckAccessGrantRequiresConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u1"}, ContentID: "open", IssueGrant: true})
	assertCode(t, err, apperrors.CodeGrantNotConfigured)
	_, err = f.svc.VerifyGrant(ctx, "token", "open")
	assertCode(t, err, apperrors.CodeGrantNotConfigured)
}

func TestCheckAccessPolicyOverride(t *testing.T) {
	t.Parallel()

	deny, err := policyscript.LoadString("deny.lua", `
function can_access(req)
  if req.user_id == "blocked" then
    return false, "DENY_BLOCKED"
  end
  return req.allowed
end
`)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	f := newFixture(t, func(opts *Options) { opts.Policy = deny })
	ctx := context.Background()
	f.createLevel(t, freeLevel())
	for _, user := range []string{"blocked", "fine"} {
		if _, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: user, LevelID: "free"}); err != nil {
			t.Fatalf("checkout %s: %v", user, err)
		}
	}
	if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{
		ContentID: "post-1",
		Levels:    domain.LevelRequirement{Mode: domain.LevelModeAny},
	}); err != nil {
		t.Fatalf("set restriction: %v", err)
	}

	blocked, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "blocked"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check blocked: %v", err)
	}
	if blocked.Decision.Allowed || blocked.Decision.ReasonCode != "DENY_BLOCKED" {
		t.Fatalf("blocked decision = %+v", blocked.Decision)
	}
	fine, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "fine"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check fine: %v", err)
	}
	if !fine.Decision.Allowed || fine.Decision.ReasonCode != domain.ReasonAllowMembership {
		t.Fatalf("fine decision = %+v", fine.Decision)
	}
}

func TestCheckAccessPolicyErrorKeepsDecision(t *testing.T) {
	t.Parallel()

	broken, err := policyscript.LoadString("broken.lua", `function can_access(req) error("boom") end`)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	f := newFixture(t, func(opts *Options) { opts.Policy = broken })
	ctx := context.Background()
	if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{ContentID: "post-1", PaidOnly: true}); err != nil {
		t.Fatalf("set restriction: %v", err)
	}
	result, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u1"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if result.Decision.Allowed || result.Decision.ReasonCode != domain.ReasonDenyNoMembership {
		t.Fatalf("decision = %+v", result.Decision)
	}
}

func TestCheckAccessPolicySeesViewerWithoutMembership(t *testing.T) {
	t.Parallel()

	guest, err := policyscript.LoadString("guest.lua", `
function can_access(req)
  if req.user_id == "reviewer" and req.status == "" then
    return true, "ALLOW_REVIEWER"
  end
  return req.allowed, req.reason
end
`)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	f := newFixture(t, func(opts *Options) { opts.Policy = guest })
	ctx := context.Background()
	if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{ContentID: "post-1", PaidOnly: true}); err != nil {
		t.Fatalf("set restriction: %v", err)
	}

	reviewer, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "reviewer"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check reviewer: %v", err)
	}
	if !reviewer.Decision.Allowed || reviewer.Decision.ReasonCode != "ALLOW_REVIEWER" {
		t.Fatalf("reviewer decision = %+v", reviewer.Decision)
	}
	other, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u2"}, ContentID: "post-1"})
	if err != nil {
		t.Fatalf("check other: %v", err)
	}
	if other.Decision.Allowed || other.Decision.ReasonCode != domain.ReasonDenyNoMembership {
		t.Fatalf("other decision = %+v", other.Decision)
	}
}

func TestConcurrentAccessChecksAndWrites(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())
	activate(t, f, "u1")

	const (
		workers = 4
		rounds  = 25
	)
	errs := make(chan error, workers*rounds*2)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				contentID := fmt.Sprintf("post-%d-%d", w, i)
				if _, err := f.svc.SetContentRestriction(ctx, domain.ContentRestriction{
					ContentID: contentID,
					Levels:    domain.LevelRequirement{Mode: domain.LevelModeAny},
				}); err != nil {
					errs <- err
					continue
				}
				result, err := f.svc.CheckAccess(ctx, AccessRequest{Viewer: domain.Viewer{UserID: "u1"}, ContentID: contentID})
				if err != nil {
					errs <- err
					continue
				}
				if !result.Decision.Allowed {
					errs <- fmt.Errorf("%s denied: %s", contentID, result.Decision.ReasonCode)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call: %v", err)
	}
}

func TestCompleteAndFailRaceSettlesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	f.createLevel(t, goldLevel())

	for i := range 10 {
		userID := fmt.Sprintf("u%d", i)
		checkout, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: userID, LevelID: "gold"})
		if err != nil {
			t.Fatalf("checkout %s: %v", userID, err)
		}
		paymentID := checkout.Payment.ID

		var (
			wg                   sync.WaitGroup
			completeErr, failErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completeErr = f.svc.CompletePayment(ctx, paymentID, "txn-"+userID)
		}()
		go func() {
			defer wg.Done()
			_, failErr = f.svc.FailPayment(ctx, paymentID)
		}()
		wg.Wait()

		if (completeErr == nil) == (failErr == nil) {
			t.Fatalf("%s: complete err = %v, fail err = %v, want exactly one success", userID, completeErr, failErr)
		}
		loser := completeErr
		if loser == nil {
			loser = failErr
		}
		assertCode(t, loser, apperrors.CodePaymentStatusInvalid)

		payment, err := f.svc.GetPayment(ctx, paymentID)
		if err != nil {
			t.Fatalf("get payment: %v", err)
		}
		member, err := f.svc.GetMember(ctx, userID)
		if err != nil {
			t.Fatalf("get member: %v", err)
		}
		switch payment.Status {
		case domain.PaymentStatusComplete:
			if completeErr != nil || member.Status != domain.StatusActive {
				t.Fatalf("%s: complete payment with member %q", userID, member.Status)
			}
		case domain.PaymentStatusFailed:
			if failErr != nil || member.Status != domain.StatusFree {
				t.Fatalf("%s: failed payment with member %q", userID, member.Status)
			}
		default:
			t.Fatalf("%s: payment status = %q", userID, payment.Status)
		}
	}
}

func TestContentRestrictionDefaultsToOpen(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	got, err := f.svc.GetContentRestriction(ctx, "post-9")
	if err != nil {
		t.Fatalf("get restriction: %v", err)
	}
	if got.ContentID != "post-9" || got.IsRestricted() {
		t.Fatalf("restriction = %+v", got)
	}
	if err := f.svc.DeleteContentRestriction(ctx, "post-9"); err != nil {
		t.Fatalf("delete missing restriction: %v", err)
	}
	_, err = f.svc.SetContentRestriction(ctx, domain.ContentRestriction{ContentID: "post-9", AccessLevel: 11})
	assertCode(t, err, apperrors.CodeRestrictionInvalidAccessLevel)
}

// activate checks userID out on gold and completes the payment.
func activate(t *testing.T, f *fixture, userID string) domain.Member {
	t.Helper()
	ctx := context.Background()
	result, err := f.svc.StartCheckout(ctx, CheckoutRequest{UserID: userID, LevelID: "gold", Recurring: true})
	if err != nil {
		t.Fatalf("checkout %s: %v", userID, err)
	}
	paid, err := f.svc.CompletePayment(ctx, result.Payment.ID, "txn-"+userID)
	if err != nil {
		t.Fatalf("complete %s: %v", userID, err)
	}
	return paid.Member
}
