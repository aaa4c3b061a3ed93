package cost

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BudgetStatus is the traffic-light classification of an estimate.
type BudgetStatus string

const (
	BudgetGreen  BudgetStatus = "green"
	BudgetYellow BudgetStatus = "yellow"
	BudgetRed    BudgetStatus = "red"
)

// Thresholds are the upper bounds (exclusive) of the green and yellow bands.
type Thresholds struct {
	Green  float64
	Yellow float64
}

// DefaultThresholds classifies < $1 as green and < $5 as yellow.
var DefaultThresholds = Thresholds{Green: 1, Yellow: 5}

// Assessment is the budget verdict attached to an estimate.
type Assessment struct {
	Status    BudgetStatus `json:"status"`
	Message   string       `json:"message"`
	TotalCost float64      `json:"total_cost_usd"`
}

// Assess classifies total.
func (t Thresholds) Assess(total float64) Assessment {
	switch {
	case total < t.Green:
		return Assessment{Status: BudgetGreen, Message: "Low cost - no action needed", TotalCost: total}
	case total < t.Yellow:
		return Assessment{Status: BudgetYellow, Message: "Medium cost - consider optimization if near upper bound", TotalCost: total}
	default:
		return Assessment{Status: BudgetRed, Message: "High cost - recommend scope reduction or phased approach", TotalCost: total}
	}
}

// ErrBudgetExceeded is returned by a Policy that refuses an estimate.
var ErrBudgetExceeded = errors.New("budget exceeded")

// PolicyMode selects how the workflow reacts to a cost estimate.
type PolicyMode string

const (
	PolicyProceed  PolicyMode = "proceed"
	PolicyBlockRed PolicyMode = "block_red"
	PolicyMaxCost  PolicyMode = "max_cost"
	PolicyApprove  PolicyMode = "approve"
)

// Policy decides whether a run may continue past the cost estimate.
// A nil error means proceed.
type Policy interface {
	Allow(ctx context.Context, sessionID string, e Estimate) error
}

// Approver is asked to confirm an estimate. It returns true to proceed.
type Approver interface {
	Approve(ctx context.Context, sessionID string, e Estimate) (bool, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, sessionID string, e Estimate) error

func (f PolicyFunc) Allow(ctx context.Context, sessionID string, e Estimate) error {
	return f(ctx, sessionID, e)
}

// Proceed allows every estimate.
func Proceed() Policy {
	return PolicyFunc(func(context.Context, string, Estimate) error { return nil })
}

// BlockRed refuses estimates whose budget status is red.
func BlockRed() Policy {
	return PolicyFunc(func(_ context.Context, _ string, e Estimate) error {
		if e.Budget.Status == BudgetRed {
			return fmt.Errorf("estimated cost %.4f %s is in the red band: %w", e.TotalCost, e.Currency, ErrBudgetExceeded)
		}
		return nil
	})
}

// MaxCost refuses estimates above limit.
func MaxCost(limit float64) Policy {
	return PolicyFunc(func(_ context.Context, _ string, e Estimate) error {
		if e.TotalCost > limit {
			return fmt.Errorf("estimated cost %.4f exceeds limit %.4f %s: %w", e.TotalCost, limit, e.Currency, ErrBudgetExceeded)
		}
		return nil
	})
}

// RequireApproval asks approver about every estimate that is not green.
func RequireApproval(approver Approver) Policy {
	return PolicyFunc(func(ctx context.Context, sessionID string, e Estimate) error {
		if e.Budget.Status == BudgetGreen {
			return nil
		}
		ok, err := approver.Approve(ctx, sessionID, e)
		if err != nil {
			return fmt.Errorf("cost approval failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("estimated cost %.4f %s was not approved: %w", e.TotalCost, e.Currency, ErrBudgetExceeded)
		}
		return nil
	})
}

// NewPolicy builds the policy for mode. An empty mode means proceed.
func NewPolicy(mode string, maxCost float64, approver Approver) (Policy, error) {
	switch PolicyMode(strings.ToLower(mode)) {
	case "", PolicyProceed:
		return Proceed(), nil
	case PolicyBlockRed:
		return BlockRed(), nil
	case PolicyMaxCost:
		if maxCost <= 0 {
			return nil, fmt.Errorf("cost policy %q needs a positive max cost", mode)
		}
		return MaxCost(maxCost), nil
	case PolicyApprove:
		if approver == nil {
			return nil, fmt.Errorf("cost policy %q needs an approver", mode)
		}
		return RequireApproval(approver), nil
	default:
		return nil, fmt.Errorf("unknown cost policy %q", mode)
	}
}
