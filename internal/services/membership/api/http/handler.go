// Package httpapi exposes the membership service as a JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
	"github.com/louisbranch/paywall/internal/platform/errors/i18n"
	"github.com/louisbranch/paywall/internal/platform/httpx"
	"github.com/louisbranch/paywall/internal/platform/telemetry/metrics"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/service"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes        = 1 << 20
	defaultPaymentLimit = 20
	maxPaymentLimit     = 100
)

// Options configures the API handler.
type Options struct {
	// Metrics records request durations. Defaults to metrics.Default.
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type handler struct {
	svc *service.Service
}

// NewHandler builds the API mux wrapped in request id, panic recovery and
// request metrics middleware.
func NewHandler(svc *service.Service, opts Options) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /v1/levels", h.handleListLevels)
	mux.HandleFunc("POST /v1/levels", h.handleCreateLevel)
	mux.HandleFunc("GET /v1/levels/{level_id}", h.handleGetLevel)
	mux.HandleFunc("PUT /v1/levels/{level_id}", h.handleUpdateLevel)

	mux.HandleFunc("GET /v1/members", h.handleListMembers)
	mux.HandleFunc("GET /v1/members/{user_id}", h.handleGetMember)
	mux.HandleFunc("GET /v1/members/{user_id}/payments", h.handleListMemberPayments)
	mux.HandleFunc("POST /v1/members/{user_id}/cancel", h.handleCancelMember)
	mux.HandleFunc("POST /v1/members/{user_id}/expire", h.handleExpireMember)
	mux.HandleFunc("POST /v1/members/{user_id}/renew", h.handleRenewMember)

	mux.HandleFunc("POST /v1/quotes", h.handleQuote)
	mux.HandleFunc("POST /v1/checkouts", h.handleCheckout)
	mux.HandleFunc("GET /v1/payments/{payment_id}", h.handleGetPayment)
	mux.HandleFunc("POST /v1/payments/{payment_id}/complete", h.handleCompletePayment)
	mux.HandleFunc("POST /v1/payments/{payment_id}/fail", h.handleFailPayment)

	mux.HandleFunc("GET /v1/content/{content_id}/restriction", h.handleGetContentRestriction)
	mux.HandleFunc("PUT /v1/content/{content_id}/restriction", h.handlePutContentRestriction)
	mux.HandleFunc("DELETE /v1/content/{content_id}/restriction", h.handleDeleteContentRestriction)
	mux.HandleFunc("PUT /v1/terms/{term_id}/restriction", h.handlePutTermRestriction)

	mux.HandleFunc("POST /v1/access/check", h.handleCheckAccess)
	mux.HandleFunc("POST /v1/access/verify", h.handleVerifyGrant)

	mux.HandleFunc("GET /v1/discounts", h.handleListDiscounts)
	mux.HandleFunc("POST /v1/discounts", h.handleCreateDiscount)
	mux.HandleFunc("GET /v1/discounts/{code}", h.handleGetDiscount)
	mux.HandleFunc("POST /v1/discounts/{code}/disable", h.handleDisableDiscount)

	return httpx.Chain(mux,
		httpx.RequestID("membership"),
		httpx.RecoverPanic(),
		httpx.ObserveRequests(opts.Metrics),
	)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.ListLevels(httpx.RequestContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]levelJSON, 0, len(levels))
	for _, level := range levels {
		out = append(out, levelToJSON(level))
	}
	writeJSON(w, http.StatusOK, map[string]any{"levels": out})
}

func (h *handler) handleCreateLevel(w http.ResponseWriter, r *http.Request) {
	var in levelJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	level, err := levelFromJSON(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.CreateLevel(httpx.RequestContext(r), level)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, levelToJSON(created))
}

func (h *handler) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	level, err := h.svc.GetLevel(httpx.RequestContext(r), r.PathValue("level_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levelToJSON(level))
}

func (h *handler) handleUpdateLevel(w http.ResponseWriter, r *http.Request) {
	var in levelJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = r.PathValue("level_id")
	level, err := levelFromJSON(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.svc.UpdateLevel(httpx.RequestContext(r), level)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levelToJSON(updated))
}

func (h *handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, err := intParam(query.Get("page_size"), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.ListMembers(httpx.RequestContext(r), storage.ListMembersRequest{
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
		Filter:    query.Get("filter"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := memberPageJSON{Members: make([]memberJSON, 0, len(page.Members)), NextPageToken: page.NextPageToken}
	for _, member := range page.Members {
		out.Members = append(out.Members, memberToJSON(member))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.svc.GetMember(httpx.RequestContext(r), r.PathValue("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberToJSON(member))
}

func (h *handler) handleListMemberPayments(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), defaultPaymentLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 || limit > maxPaymentLimit {
		limit = maxPaymentLimit
	}
	payments, err := h.svc.ListMemberPayments(httpx.RequestContext(r), r.PathValue("user_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]paymentJSON, 0, len(payments))
	for _, payment := range payments {
		out = append(out, paymentToJSON(payment))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

func (h *handler) handleCancelMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.svc.CancelMember(httpx.RequestContext(r), r.PathValue("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberToJSON(member))
}

func (h *handler) handleExpireMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.svc.ExpireMember(httpx.RequestContext(r), r.PathValue("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberToJSON(member))
}

func (h *handler) handleRenewMember(w http.ResponseWriter, r *http.Request) {
	var in renewRequestJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.RenewMember(httpx.RequestContext(r), service.RenewRequest{
		UserID:        r.PathValue("user_id"),
		TransactionID: in.TransactionID,
		Amount:        in.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResultJSON{
		Payment: paymentToJSON(result.Payment),
		Member:  memberToJSON(result.Member),
	})
}

func (h *handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var in checkoutRequestJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	quote, err := h.svc.PreviewQuote(httpx.RequestContext(r), in.UserID, in.LevelID, in.DiscountCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteToJSON(quote))
}

func (h *handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var in checkoutRequestJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.StartCheckout(httpx.RequestContext(r), service.CheckoutRequest{
		UserID:       in.UserID,
		LevelID:      in.LevelID,
		DiscountCode: in.DiscountCode,
		Recurring:    in.Recurring,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := checkoutResponseJSON{
		Member: memberToJSON(result.Member),
		Quote:  quoteToJSON(result.Quote),
	}
	if result.Payment != nil {
		payment := paymentToJSON(*result.Payment)
		out.Payment = &payment
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.GetPayment(httpx.RequestContext(r), r.PathValue("payment_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToJSON(payment))
}

func (h *handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	var in completePaymentJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.CompletePayment(httpx.RequestContext(r), r.PathValue("payment_id"), in.TransactionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResultJSON{
		Payment: paymentToJSON(result.Payment),
		Member:  memberToJSON(result.Member),
	})
}

func (h *handler) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.FailPayment(httpx.RequestContext(r), r.PathValue("payment_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResultJSON{
		Payment: paymentToJSON(result.Payment),
		Member:  memberToJSON(result.Member),
	})
}

func (h *handler) handleGetContentRestriction(w http.ResponseWriter, r *http.Request) {
	restriction, err := h.svc.GetContentRestriction(httpx.RequestContext(r), r.PathValue("content_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contentRestrictionToJSON(restriction))
}

func (h *handler) handlePutContentRestriction(w http.ResponseWriter, r *http.Request) {
	var in contentRestrictionJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	restriction, err := contentRestrictionFromJSON(r.PathValue("content_id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.svc.SetContentRestriction(httpx.RequestContext(r), restriction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contentRestrictionToJSON(saved))
}

func (h *handler) handleDeleteContentRestriction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteContentRestriction(httpx.RequestContext(r), r.PathValue("content_id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handlePutTermRestriction(w http.ResponseWriter, r *http.Request) {
	var in termRestrictionJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.svc.SetTermRestriction(httpx.RequestContext(r), domain.TermRestriction{
		TermID:      r.PathValue("term_id"),
		PaidOnly:    in.PaidOnly,
		LevelIDs:    in.LevelIDs,
		AccessLevel: in.AccessLevel,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, termRestrictionToJSON(saved))
}

func (h *handler) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	var in accessCheckJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.svc.CheckAccess(httpx.RequestContext(r), service.AccessRequest{
		Viewer: domain.Viewer{
			UserID:  in.Viewer.UserID,
			Roles:   in.Viewer.Roles,
			IsAdmin: in.Viewer.IsAdmin,
		},
		ContentID:  in.ContentID,
		IssueGrant: in.IssueGrant,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResultJSON{
		Allowed:        result.Decision.Allowed,
		Reason:         result.Decision.ReasonCode,
		Grant:          result.Grant,
		GrantExpiresAt: formatTime(result.GrantExpiresAt),
	})
}

func (h *handler) handleVerifyGrant(w http.ResponseWriter, r *http.Request) {
	var in verifyGrantJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	claims, err := h.svc.VerifyGrant(httpx.RequestContext(r), in.Grant, in.ContentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimsToJSON(claims))
}

func (h *handler) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.svc.ListDiscounts(httpx.RequestContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]discountJSON, 0, len(discounts))
	for _, discount := range discounts {
		out = append(out, discountToJSON(discount))
	}
	writeJSON(w, http.StatusOK, map[string]any{"discounts": out})
}

func (h *handler) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var in discountJSON
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	discount, err := discountFromJSON(in)
	if err != nil {
		writeError(w, r, invalidArgument(fmt.Sprintf("expires_at: %v", err)))
		return
	}
	created, err := h.svc.CreateDiscount(httpx.RequestContext(r), discount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, discountToJSON(created))
}

func (h *handler) handleGetDiscount(w http.ResponseWriter, r *http.Request) {
	discount, err := h.svc.GetDiscount(httpx.RequestContext(r), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, discountToJSON(discount))
}

func (h *handler) handleDisableDiscount(w http.ResponseWriter, r *http.Request) {
	discount, err := h.svc.DisableDiscount(httpx.RequestContext(r), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, discountToJSON(discount))
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return invalidArgument("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidArgument("request body is required")
		}
		return invalidArgument(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

func intParam(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, invalidArgument(fmt.Sprintf("%q is not a number", value))
	}
	return n, nil
}

func invalidArgument(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpx.WriteJSON(w, status, payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError renders domain errors with their HTTP status and a message in
// the caller's preferred language. Anything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		log.Printf("request failed method=%s path=%s request_id=%s err=%v",
			r.Method, r.URL.Path, r.Header.Get(httpx.RequestIDHeader), err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: errorBodyJSON{
			Code:    string(apperrors.CodeUnknown),
			Message: http.StatusText(http.StatusInternalServerError),
		}})
		return
	}
	locale := i18n.MatchLocale(r.Header.Get("Accept-Language"))
	writeJSON(w, domainErr.Code.HTTPStatus(), errorJSON{Error: errorBodyJSON{
		Code:    string(domainErr.Code),
		Message: domainErr.Localized(locale),
	}})
}
