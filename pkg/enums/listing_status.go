package enums

import (
	"fmt"
	"strings"
)

// ListingStatus tracks where a listing is in its sale lifecycle.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusExpired ListingStatus = "expired"
	ListingStatusPaused  ListingStatus = "paused"
	ListingStatusDeleted ListingStatus = "deleted"
)

var validListingStatuses = []ListingStatus{
	ListingStatusActive,
	ListingStatusSold,
	ListingStatusExpired,
	ListingStatusPaused,
	ListingStatusDeleted,
}

// listingTransitions lists the statuses a caller may move a listing to.
// Expiry is never requested by callers; it is applied when expires_at passes.
var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusActive: {ListingStatusSold, ListingStatusPaused, ListingStatusDeleted},
	ListingStatusPaused: {ListingStatusActive, ListingStatusDeleted},
}

func (s ListingStatus) String() string {
	return string(s)
}

func (s ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no caller-driven transition leaves s.
func (s ListingStatus) IsTerminal() bool {
	return len(listingTransitions[s]) == 0
}

// CanTransitionTo reports whether a caller may move a listing from s to next.
// Re-applying the current status is allowed.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	if s == next {
		return true
	}
	for _, candidate := range listingTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseListingStatus converts raw input into a ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validListingStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
