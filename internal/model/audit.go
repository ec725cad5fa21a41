package model

import "time"

// AuditReportID identifies an audit report
type AuditReportID string

// ReasonLedgerDivergence tags reports raised when a balance drifts past the tolerance band
const ReasonLedgerDivergence = "ledger_divergence"

// AuditReport records a balance correction for operator review
type AuditReport struct {
	ID              AuditReportID `json:"id"`
	UserID          UserID        `json:"userId"`
	ClaimedBalance  int64         `json:"claimedBalance"`
	ComputedBalance int64         `json:"computedBalance"`
	Reason          string        `json:"reason"`
	CreatedAt       time.Time     `json:"createdAt"`
}
