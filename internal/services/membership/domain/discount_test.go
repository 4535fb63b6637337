package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "SPRING-25", want: "spring-25"},
		{input: "  launch_2026 ", want: "launch_2026"},
		{input: "", wantErr: true},
		{input: "with space", wantErr: true},
		{input: "emoji🙂", wantErr: true},
		{input: strings.Repeat("a", 65), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeCode(tt.input)
			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.CodeDiscountInvalidCode) {
					t.Fatalf("err = %v, want invalid code", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		wantCode apperrors.Code
	}{
		{name: "percent", discount: Discount{Code: "TEN", Amount: decimal.NewFromInt(10), Unit: DiscountUnitPercent}},
		{name: "full percent", discount: Discount{Code: "free", Amount: decimal.NewFromInt(100), Unit: DiscountUnitPercent}},
		{name: "flat", discount: Discount{Code: "five", Amount: decimal.RequireFromString("5.00"), Unit: DiscountUnitFlat}},
		{name: "over 100 percent", discount: Discount{Code: "x", Amount: decimal.NewFromInt(101), Unit: DiscountUnitPercent}, wantCode: apperrors.CodeDiscountInvalidAmount},
		{name: "zero amount", discount: Discount{Code: "x", Amount: decimal.Zero, Unit: DiscountUnitFlat}, wantCode: apperrors.CodeDiscountInvalidAmount},
		{name: "negative amount", discount: Discount{Code: "x", Amount: decimal.NewFromInt(-1), Unit: DiscountUnitFlat}, wantCode: apperrors.CodeDiscountInvalidAmount},
		{name: "unknown unit", discount: Discount{Code: "x", Amount: decimal.NewFromInt(1), Unit: "bogo"}, wantCode: apperrors.CodeDiscountInvalidUnit},
		{name: "bad code", discount: Discount{Code: "a b", Amount: decimal.NewFromInt(1), Unit: DiscountUnitFlat}, wantCode: apperrors.CodeDiscountInvalidCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDiscount(tt.discount)
			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != DiscountStatusActive {
				t.Fatalf("status = %q, want active", got.Status)
			}
		})
	}
}

func TestCheckDiscount(t *testing.T) {
	base := Discount{
		Code:      "spring",
		Amount:    decimal.NewFromInt(20),
		Unit:      DiscountUnitPercent,
		Status:    DiscountStatusActive,
		ExpiresAt: testNow.Add(time.Hour),
		MaxUses:   3,
		UseCount:  1,
		LevelID:   "gold",
	}
	with := func(mutate func(*Discount)) Discount {
		d := base
		mutate(&d)
		return d
	}

	tests := []struct {
		name     string
		discount Discount
		levelID  string
		used     bool
		wantCode apperrors.Code
	}{
		{name: "valid", discount: base, levelID: "gold"},
		{name: "unscoped", discount: with(func(d *Discount) { d.LevelID = "" }), levelID: "silver"},
		{name: "unlimited uses", discount: with(func(d *Discount) { d.MaxUses = 0; d.UseCount = 1000 }), levelID: "gold"},
		{name: "no expiration", discount: with(func(d *Discount) { d.ExpiresAt = time.Time{} }), levelID: "gold"},
		{name: "disabled", discount: with(func(d *Discount) { d.Status = DiscountStatusDisabled }), levelID: "gold", wantCode: apperrors.CodeDiscountInactive},
		{name: "expired", discount: with(func(d *Discount) { d.ExpiresAt = testNow.Add(-time.Second) }), levelID: "gold", wantCode: apperrors.CodeDiscountExpired},
		{name: "maxed out", discount: with(func(d *Discount) { d.UseCount = 3 }), levelID: "gold", wantCode: apperrors.CodeDiscountMaxedOut},
		{name: "level mismatch", discount: base, levelID: "silver", wantCode: apperrors.CodeDiscountLevelMismatch},
		{name: "already used", discount: base, levelID: "gold", used: true, wantCode: apperrors.CodeDiscountAlreadyUsed},
		{
			name:     "disabled wins over expired",
			discount: with(func(d *Discount) { d.Status = DiscountStatusDisabled; d.ExpiresAt = testNow.Add(-time.Hour) }),
			levelID:  "gold",
			wantCode: apperrors.CodeDiscountInactive,
		},
		{
			name:     "maxed out wins over level mismatch",
			discount: with(func(d *Discount) { d.UseCount = 5 }),
			levelID:  "silver",
			wantCode: apperrors.CodeDiscountMaxedOut,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDiscount(tt.discount, tt.levelID, testNow, tt.used)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount Discount
		want     string
	}{
		{name: "ten percent", price: "19.99", discount: Discount{Amount: decimal.NewFromInt(10), Unit: DiscountUnitPercent}, want: "17.99"},
		{name: "third off rounds", price: "10", discount: Discount{Amount: decimal.RequireFromString("33.333"), Unit: DiscountUnitPercent}, want: "6.67"},
		{name: "full percent", price: "25", discount: Discount{Amount: decimal.NewFromInt(100), Unit: DiscountUnitPercent}, want: "0"},
		{name: "flat", price: "25", discount: Discount{Amount: decimal.RequireFromString("7.5"), Unit: DiscountUnitFlat}, want: "17.5"},
		{name: "flat floors at zero", price: "5", discount: Discount{Amount: decimal.NewFromInt(10), Unit: DiscountUnitFlat}, want: "0"},
		{name: "unknown unit leaves price", price: "5", discount: Discount{Amount: decimal.NewFromInt(1), Unit: "bogo"}, want: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDiscount(decimal.RequireFromString(tt.price), tt.discount)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}
