package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the support channel a request comes from
type Channel string

// Channels
const (
	ChannelDiscord  Channel = "discord"
	ChannelTelegram Channel = "telegram"
	ChannelWeb      Channel = "web"
)

// Valid returns true for the known channels
func (c Channel) Valid() bool {
	switch c {
	case ChannelDiscord, ChannelTelegram, ChannelWeb:
		return true
	}
	return false
}

// DistributionRequest is one request for tBNB
type DistributionRequest struct {
	GithubUsername string
	WalletAddress  string
	BuilderID      string
	Channel        Channel
}

// DistributionStatus is the terminal state of a request
type DistributionStatus string

// Distribution statuses
const (
	StatusIssued                  DistributionStatus = "ISSUED"
	StatusDeniedVerification      DistributionStatus = "DENIED_VERIFICATION"
	StatusDeniedCooldown          DistributionStatus = "DENIED_COOLDOWN"
	StatusDeniedInvalidInput      DistributionStatus = "DENIED_INVALID_INPUT"
	StatusDeniedLookupUnavailable DistributionStatus = "DENIED_LOOKUP_UNAVAILABLE"
	StatusFailedExecution         DistributionStatus = "FAILED_EXECUTION"
)

// DistributionOutcome is the single result produced for a request
type DistributionOutcome struct {
	RequestID  uuid.UUID          `json:"request_id"`
	Status     DistributionStatus `json:"status"`
	Message    string             `json:"message"`
	TxID       *string            `json:"tx_hash,omitempty"`
	Verdict    *IdentityVerdict   `json:"verification,omitempty"`
	RetryAfter *time.Duration     `json:"-"`
	BuilderID  string             `json:"builder_id"`
	Channel    Channel            `json:"channel"`
}

// RetryAfterSeconds returns the retry after rounded up to whole seconds, or nil
func (o *DistributionOutcome) RetryAfterSeconds() *int64 {
	if o.RetryAfter == nil {
		return nil
	}
	secs := int64((*o.RetryAfter + time.Second - 1) / time.Second)
	return &secs
}
