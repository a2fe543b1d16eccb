// internal/models/release_policy.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReleasePolicyKind string

const (
	ReleasePolicyStandardSplit        ReleasePolicyKind = "standard_split"
	ReleasePolicyDisputeAdjustedSplit ReleasePolicyKind = "dispute_adjusted_split"
)

var hundred = decimal.NewFromInt(100)

// ReleasePolicy decides how much of the standard net amount reaches the creator.
// It is copied onto the wallet transaction so past releases never depend on
// later dispute edits.
type ReleasePolicy struct {
	Kind                 ReleasePolicyKind
	PayoutPercentage     decimal.Decimal
	DisputeID            *uuid.UUID
	RemainderDisposition RemainderDisposition
}

func StandardSplit() ReleasePolicy {
	return ReleasePolicy{
		Kind:             ReleasePolicyStandardSplit,
		PayoutPercentage: hundred,
	}
}

func DisputeAdjustedSplit(disputeID uuid.UUID, payoutPercentage decimal.Decimal, disposition RemainderDisposition) ReleasePolicy {
	id := disputeID
	return ReleasePolicy{
		Kind:                 ReleasePolicyDisputeAdjustedSplit,
		PayoutPercentage:     payoutPercentage,
		DisputeID:            &id,
		RemainderDisposition: disposition,
	}
}

func (p ReleasePolicy) IsAdjusted() bool {
	return p.Kind == ReleasePolicyDisputeAdjustedSplit
}
