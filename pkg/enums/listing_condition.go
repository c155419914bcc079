package enums

import (
	"fmt"
	"strings"
)

// ListingCondition grades the physical state of an item.
type ListingCondition string

const (
	ListingConditionNew       ListingCondition = "new"
	ListingConditionLikeNew   ListingCondition = "like-new"
	ListingConditionExcellent ListingCondition = "excellent"
	ListingConditionGood      ListingCondition = "good"
	ListingConditionFair      ListingCondition = "fair"
	ListingConditionPoor      ListingCondition = "poor"
)

// DefaultListingCondition is the baseline applied when a listing omits condition.
const DefaultListingCondition = ListingConditionNew

var validListingConditions = []ListingCondition{
	ListingConditionNew,
	ListingConditionLikeNew,
	ListingConditionExcellent,
	ListingConditionGood,
	ListingConditionFair,
	ListingConditionPoor,
}

func (c ListingCondition) String() string {
	return string(c)
}

func (c ListingCondition) IsValid() bool {
	for _, candidate := range validListingConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseListingCondition converts raw input into a ListingCondition.
func ParseListingCondition(value string) (ListingCondition, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validListingConditions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing condition %q", value)
}
