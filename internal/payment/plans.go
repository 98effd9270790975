// Package payment creates and verifies subscription payments through a hosted payment
// gateway and records the resulting plan changes.
package payment

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Plan is a purchasable subscription tier.
type Plan struct {
	Name        string
	DisplayName string
	Amount      string
}

// Free reports whether the plan costs nothing.
func (p Plan) Free() bool {
	return p.Amount == freeAmount
}

const (
	freeAmount       = "0"
	orderIDPrefix    = "PY"
	orderIDDigits    = 6
	orderIDRandomMax = 999
)

var plans = map[string]Plan{
	"basic": {Name: "basic", DisplayName: "Basic", Amount: freeAmount},
	"pro":   {Name: "pro", DisplayName: "Pro", Amount: "499.00"},
	"king":  {Name: "king", DisplayName: "King", Amount: "1499.00"},
}

var (
	// ErrPlanRequired is returned for an order without a plan.
	ErrPlanRequired = errors.New("plan is required")
	// ErrInvalidPlan is returned for an unknown plan name.
	ErrInvalidPlan = errors.New("invalid plan selected")
)

// LookupPlan finds a plan by case-insensitive name.
func LookupPlan(name string) (Plan, error) {
	if strings.TrimSpace(name) == "" {
		return Plan{}, ErrPlanRequired
	}

	plan, ok := plans[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidPlan, name)
	}

	return plan, nil
}

// NewOrderID returns "PY", the last six digits of the millisecond clock and a random
// suffix below 999.
func NewOrderID(now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > orderIDDigits {
		millis = millis[len(millis)-orderIDDigits:]
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(orderIDRandomMax))
	if err != nil {
		suffix = big.NewInt(now.UnixNano() % orderIDRandomMax)
	}

	return orderIDPrefix + millis + suffix.String()
}
