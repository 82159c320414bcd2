package domain

import "time"

// FailureReason names a verification check an account did not pass
type FailureReason string

const (
	ReasonAccountNotFound   FailureReason = "ACCOUNT_NOT_FOUND"  // ReasonAccountNotFound the username doesn't resolve to an account
	ReasonAccountTooNew     FailureReason = "ACCOUNT_TOO_NEW"    // ReasonAccountTooNew the account is younger than the configured minimum
	ReasonInsufficientRepos FailureReason = "INSUFFICIENT_REPOS" // ReasonInsufficientRepos not enough public repositories
)

// GithubProfile is the subset of a GitHub account the verifier cares about.
// ID is the immutable numeric account id.
type GithubProfile struct {
	ID          int64     `json:"id"`
	Login       string    `json:"login"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	PublicRepos int       `json:"public_repos"`
}

// IdentityVerdict is the result of verifying a GitHub account. It lives for a single request.
type IdentityVerdict struct {
	IdentityKey     int64           `json:"github_user_id"`
	Username        string          `json:"github_username"`
	Verified        bool            `json:"verified"`
	Reasons         []FailureReason `json:"reasons"`
	AccountAgeDays  int             `json:"account_age_days"`
	PublicRepoCount int             `json:"public_repos"`
}
