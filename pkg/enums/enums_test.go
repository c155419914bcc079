package enums

import "testing"

func TestParseCurrency(t *testing.T) {
	cases := map[string]Currency{"usd": CurrencyUSD, " EUR ": CurrencyEUR, "jpy": CurrencyJPY}
	for raw, want := range cases {
		got, err := ParseCurrency(raw)
		if err != nil || got != want {
			t.Fatalf("ParseCurrency(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatal("expected BTC to be rejected")
	}
}

func TestParseListingCondition(t *testing.T) {
	if got, err := ParseListingCondition("Like-New"); err != nil || got != ListingConditionLikeNew {
		t.Fatalf("unexpected result %q %v", got, err)
	}
	if _, err := ParseListingCondition("used"); err == nil {
		t.Fatal("expected unknown condition to fail")
	}
}

func TestListingStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ListingStatus
		ok       bool
	}{
		{ListingStatusActive, ListingStatusSold, true},
		{ListingStatusActive, ListingStatusPaused, true},
		{ListingStatusActive, ListingStatusDeleted, true},
		{ListingStatusActive, ListingStatusExpired, false},
		{ListingStatusPaused, ListingStatusActive, true},
		{ListingStatusPaused, ListingStatusSold, false},
		{ListingStatusSold, ListingStatusActive, false},
		{ListingStatusExpired, ListingStatusActive, false},
		{ListingStatusDeleted, ListingStatusDeleted, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
	for _, s := range []ListingStatus{ListingStatusSold, ListingStatusExpired, ListingStatusDeleted} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestUploadStatusIsFinal(t *testing.T) {
	if UploadStatusUploading.IsFinal() || !UploadStatusFailed.IsFinal() || !UploadStatusCompleted.IsFinal() {
		t.Fatal("unexpected IsFinal results")
	}
}
