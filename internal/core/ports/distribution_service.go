package ports

import (
	"context"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// DistributionService runs the full decision pipeline for one request
type DistributionService interface {
	Issue(ctx context.Context, req *domain.DistributionRequest) *domain.DistributionOutcome
}
