package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// ToolIssueTBNB is the only tool served
const ToolIssueTBNB = "issue_tbnb"

// Tool is an MCP tool definition
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema *openapi3.Schema `json:"inputSchema"`
}

// IssueArguments are the arguments of issue_tbnb and the body of the legacy /requests endpoint
type IssueArguments struct {
	GithubUsername string `json:"github_username"`
	WalletAddress  string `json:"wallet_address"`
	BuilderID      string `json:"builder_id,omitempty"`
	Channel        string `json:"channel,omitempty"`
}

func (a IssueArguments) request() *domain.DistributionRequest {
	return &domain.DistributionRequest{
		GithubUsername: a.GithubUsername,
		WalletAddress:  a.WalletAddress,
		BuilderID:      a.BuilderID,
		Channel:        domain.Channel(a.Channel),
	}
}

func issueSchema(minAgeDays, minRepos int) *openapi3.Schema {
	username := openapi3.NewStringSchema().WithMinLength(1)
	username.Description = fmt.Sprintf("GitHub username for verification. Must have at least %d public repository and account age >= %d days.", minRepos, minAgeDays)

	wallet := openapi3.NewStringSchema().WithMinLength(1)
	wallet.Description = "BSC (Binance Smart Chain) wallet address to receive tBNB. Must be a valid Ethereum-compatible address."

	builder := openapi3.NewStringSchema()
	builder.Description = "Optional builder identifier (e.g., Discord/Telegram user ID). Defaults to auto-generated ID."

	channel := openapi3.NewStringSchema().
		WithEnum(string(domain.ChannelDiscord), string(domain.ChannelTelegram), string(domain.ChannelWeb)).
		WithDefault(string(domain.ChannelWeb))
	channel.Description = "Support channel where request originated. Options: 'discord', 'telegram', 'web'. Defaults to 'web'."

	return openapi3.NewObjectSchema().
		WithProperty("github_username", username).
		WithProperty("wallet_address", wallet).
		WithProperty("builder_id", builder).
		WithProperty("channel", channel).
		WithRequired([]string{"github_username", "wallet_address"})
}

func issueTool(schema *openapi3.Schema) Tool {
	return Tool{
		Name: ToolIssueTBNB,
		Description: "Request tBNB payout for a verified GitHub user. Verifies the user via GitHub API, checks account age, " +
			"repository count, and rate limits, then sends tBNB to the specified wallet address on BSC testnet.",
		InputSchema: schema,
	}
}

var errMissingArguments = errors.New("missing arguments")

// decodeArguments validates raw against schema and decodes it
func decodeArguments(schema *openapi3.Schema, raw json.RawMessage) (IssueArguments, error) {
	var args IssueArguments
	if len(raw) == 0 || string(raw) == "null" {
		return args, errMissingArguments
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return args, err
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return args, err
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, err
	}
	return args, nil
}
