package httpapi

import (
	"time"

	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/grant"
	"github.com/shopspring/decimal"
)

type durationJSON struct {
	Count int    `json:"count"`
	Unit  string `json:"unit"`
}

type levelJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Duration      durationJSON    `json:"duration"`
	TrialDuration durationJSON    `json:"trial_duration"`
	Price         decimal.Decimal `json:"price"`
	Fee           decimal.Decimal `json:"fee"`
	AccessLevel   int             `json:"access_level"`
	Status        string          `json:"status"`
	ListOrder     int             `json:"list_order"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

type memberJSON struct {
	UserID     string `json:"user_id"`
	LevelID    string `json:"level_id,omitempty"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	Recurring  bool   `json:"recurring"`
	Trialing   bool   `json:"trialing"`
	HasTrialed bool   `json:"has_trialed"`
	LastPaidAt string `json:"last_paid_at,omitempty"`
	JoinedAt   string `json:"joined_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type paymentJSON struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	LevelID       string          `json:"level_id"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	DiscountCode  string          `json:"discount_code,omitempty"`
	Recurring     bool            `json:"recurring"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type quoteJSON struct {
	LevelID        string          `json:"level_id"`
	DiscountCode   string          `json:"discount_code,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Fee            decimal.Decimal `json:"fee"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	RecurringTotal decimal.Decimal `json:"recurring_total"`
	InitialTotal   decimal.Decimal `json:"initial_total"`
	TrialEligible  bool            `json:"trial_eligible"`
	TrialDuration  *durationJSON   `json:"trial_duration,omitempty"`
}

type discountJSON struct {
	ID          string          `json:"id,omitempty"`
	Code        string          `json:"code"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Unit        string          `json:"unit"`
	Status      string          `json:"status,omitempty"`
	ExpiresAt   string          `json:"expires_at,omitempty"`
	MaxUses     int             `json:"max_uses"`
	UseCount    int             `json:"use_count"`
	LevelID     string          `json:"level_id,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
}

type levelRequirementJSON struct {
	Mode     string   `json:"mode"`
	LevelIDs []string `json:"level_ids,omitempty"`
}

type contentRestrictionJSON struct {
	ContentID   string               `json:"content_id"`
	AuthorID    string               `json:"author_id,omitempty"`
	Levels      levelRequirementJSON `json:"levels"`
	AccessLevel int                  `json:"access_level"`
	PaidOnly    bool                 `json:"paid_only"`
	Roles       []string             `json:"roles,omitempty"`
	TermIDs     []string             `json:"term_ids,omitempty"`
}

type termRestrictionJSON struct {
	TermID      string   `json:"term_id"`
	PaidOnly    bool     `json:"paid_only"`
	LevelIDs    []string `json:"level_ids,omitempty"`
	AccessLevel int      `json:"access_level"`
}

type viewerJSON struct {
	UserID  string   `json:"user_id"`
	Roles   []string `json:"roles,omitempty"`
	IsAdmin bool     `json:"is_admin"`
}

type checkoutRequestJSON struct {
	UserID       string `json:"user_id"`
	LevelID      string `json:"level_id"`
	DiscountCode string `json:"discount_code"`
	Recurring    bool   `json:"recurring"`
}

type checkoutResponseJSON struct {
	Member  memberJSON   `json:"member"`
	Quote   quoteJSON    `json:"quote"`
	Payment *paymentJSON `json:"payment,omitempty"`
}

type paymentResultJSON struct {
	Payment paymentJSON `json:"payment"`
	Member  memberJSON  `json:"member"`
}

type completePaymentJSON struct {
	TransactionID string `json:"transaction_id"`
}

type renewRequestJSON struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type accessCheckJSON struct {
	Viewer     viewerJSON `json:"viewer"`
	ContentID  string     `json:"content_id"`
	IssueGrant bool       `json:"issue_grant"`
}

type accessResultJSON struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason"`
	Grant          string `json:"grant,omitempty"`
	GrantExpiresAt string `json:"grant_expires_at,omitempty"`
}

type verifyGrantJSON struct {
	Grant     string `json:"grant"`
	ContentID string `json:"content_id"`
}

type grantClaimsJSON struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	LevelID   string `json:"level_id,omitempty"`
	JWTID     string `json:"jti"`
	IssuedAt  string `json:"issued_at,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

type memberPageJSON struct {
	Members       []memberJSON `json:"members"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

type errorJSON struct {
	Error errorBodyJSON `json:"error"`
}

type errorBodyJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

func durationFromJSON(d durationJSON) (domain.Duration, error) {
	if d.Count == 0 && d.Unit == "" {
		return domain.Duration{}, nil
	}
	unit, err := domain.ParseDurationUnit(d.Unit)
	if err != nil {
		return domain.Duration{}, domain.ErrLevelInvalidDuration
	}
	return domain.Duration{Count: d.Count, Unit: unit}, nil
}

func durationToJSON(d domain.Duration) durationJSON {
	return durationJSON{Count: d.Count, Unit: string(d.Unit)}
}

func levelFromJSON(in levelJSON) (domain.Level, error) {
	duration, err := durationFromJSON(in.Duration)
	if err != nil {
		return domain.Level{}, err
	}
	trial, err := durationFromJSON(in.TrialDuration)
	if err != nil {
		return domain.Level{}, err
	}
	return domain.Level{
		ID:            in.ID,
		Name:          in.Name,
		Description:   in.Description,
		Duration:      duration,
		TrialDuration: trial,
		Price:         in.Price,
		Fee:           in.Fee,
		AccessLevel:   in.AccessLevel,
		Status:        domain.LevelStatus(in.Status),
		ListOrder:     in.ListOrder,
	}, nil
}

func levelToJSON(l domain.Level) levelJSON {
	return levelJSON{
		ID:            l.ID,
		Name:          l.Name,
		Description:   l.Description,
		Duration:      durationToJSON(l.Duration),
		TrialDuration: durationToJSON(l.TrialDuration),
		Price:         l.Price,
		Fee:           l.Fee,
		AccessLevel:   l.AccessLevel,
		Status:        string(l.Status),
		ListOrder:     l.ListOrder,
		CreatedAt:     formatTime(l.CreatedAt),
		UpdatedAt:     formatTime(l.UpdatedAt),
	}
}

func memberToJSON(m domain.Member) memberJSON {
	return memberJSON{
		UserID:     m.UserID,
		LevelID:    m.LevelID,
		Status:     m.Status.Label(),
		ExpiresAt:  formatTime(m.ExpiresAt),
		Recurring:  m.Recurring,
		Trialing:   m.Trialing,
		HasTrialed: m.HasTrialed,
		LastPaidAt: formatTime(m.LastPaidAt),
		JoinedAt:   formatTime(m.JoinedAt),
		UpdatedAt:  formatTime(m.UpdatedAt),
	}
}

func paymentToJSON(p domain.Payment) paymentJSON {
	return paymentJSON{
		ID:            p.ID,
		UserID:        p.UserID,
		LevelID:       p.LevelID,
		Kind:          string(p.Kind),
		Status:        string(p.Status),
		Amount:        p.Amount,
		DiscountCode:  p.DiscountCode,
		Recurring:     p.Recurring,
		TransactionID: p.TransactionID,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

func quoteToJSON(q domain.Quote) quoteJSON {
	out := quoteJSON{
		LevelID:        q.LevelID,
		DiscountCode:   q.DiscountCode,
		Price:          q.Price,
		Fee:            q.Fee,
		DiscountAmount: q.DiscountAmount,
		RecurringTotal: q.RecurringTotal,
		InitialTotal:   q.InitialTotal,
		TrialEligible:  q.TrialEligible,
	}
	if q.TrialEligible {
		trial := durationToJSON(q.TrialDuration)
		out.TrialDuration = &trial
	}
	return out
}

func discountFromJSON(in discountJSON) (domain.Discount, error) {
	expiresAt, err := parseTime(in.ExpiresAt)
	if err != nil {
		return domain.Discount{}, err
	}
	return domain.Discount{
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		Amount:      in.Amount,
		Unit:        domain.DiscountUnit(in.Unit),
		Status:      domain.DiscountStatus(in.Status),
		ExpiresAt:   expiresAt,
		MaxUses:     in.MaxUses,
		LevelID:     in.LevelID,
	}, nil
}

func discountToJSON(d domain.Discount) discountJSON {
	return discountJSON{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		Description: d.Description,
		Amount:      d.Amount,
		Unit:        string(d.Unit),
		Status:      string(d.Status),
		ExpiresAt:   formatTime(d.ExpiresAt),
		MaxUses:     d.MaxUses,
		UseCount:    d.UseCount,
		LevelID:     d.LevelID,
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
}

func contentRestrictionFromJSON(contentID string, in contentRestrictionJSON) (domain.ContentRestriction, error) {
	mode, err := domain.ParseLevelMode(in.Levels.Mode)
	if err != nil {
		return domain.ContentRestriction{}, err
	}
	return domain.ContentRestriction{
		ContentID:   contentID,
		AuthorID:    in.AuthorID,
		Levels:      domain.LevelRequirement{Mode: mode, LevelIDs: in.Levels.LevelIDs},
		AccessLevel: in.AccessLevel,
		PaidOnly:    in.PaidOnly,
		Roles:       in.Roles,
		TermIDs:     in.TermIDs,
	}, nil
}

func contentRestrictionToJSON(c domain.ContentRestriction) contentRestrictionJSON {
	return contentRestrictionJSON{
		ContentID:   c.ContentID,
		AuthorID:    c.AuthorID,
		Levels:      levelRequirementJSON{Mode: string(c.Levels.Mode), LevelIDs: c.Levels.LevelIDs},
		AccessLevel: c.AccessLevel,
		PaidOnly:    c.PaidOnly,
		Roles:       c.Roles,
		TermIDs:     c.TermIDs,
	}
}

func termRestrictionToJSON(t domain.TermRestriction) termRestrictionJSON {
	return termRestrictionJSON{
		TermID:      t.TermID,
		PaidOnly:    t.PaidOnly,
		LevelIDs:    t.LevelIDs,
		AccessLevel: t.AccessLevel,
	}
}

func claimsToJSON(c grant.Claims) grantClaimsJSON {
	return grantClaimsJSON{
		UserID:    c.UserID,
		ContentID: c.ContentID,
		LevelID:   c.LevelID,
		JWTID:     c.JWTID,
		IssuedAt:  formatTime(c.IssuedAt),
		ExpiresAt: formatTime(c.ExpiresAt),
	}
}
