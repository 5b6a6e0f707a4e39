package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
)

type MarketPriceSyncResult struct {
	Market string `json:"market"`
	Price  string `json:"price,omitempty"`
	Error  string `json:"error,omitempty"`
}

type MarketPriceSyncStrategy struct {
	cfg        *config.Config
	log        *logger.Logger
	marketRepo repository.MarketRepository
	oracleRepo repository.PriceOracleRepository
}

func NewMarketPriceSyncStrategy(cfg *config.Config, log *logger.Logger, marketRepo repository.MarketRepository, oracleRepo repository.PriceOracleRepository) JobExecutionStrategy {
	return &MarketPriceSyncStrategy{
		cfg:        cfg,
		log:        log,
		marketRepo: marketRepo,
		oracleRepo: oracleRepo,
	}
}

func (s *MarketPriceSyncStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting market price sync")

	markets, err := s.marketRepo.Get(ctx, model.GetMarketsParam{IsActive: utils.ToPointer(true)})
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to list markets: %v", err)}, err
	}
	if len(markets) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no active markets"}, nil
	}

	results := make([]MarketPriceSyncResult, 0, len(markets))
	failed := 0
	for _, market := range markets {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}

		price, err := s.oracleRepo.GetPrice(ctx, market.BaseCurrency.Symbol)
		if err != nil {
			// Oracle failure leaves the stored price untouched for this tick.
			s.log.WarnContext(ctx, "Failed to fetch price",
				logger.ErrorField(err),
				logger.StringField("market", market.Name),
			)
			results = append(results, MarketPriceSyncResult{Market: market.Name, Error: err.Error()})
			failed++
			continue
		}
		if price.LessThanOrEqual(decimal.Zero) {
			results = append(results, MarketPriceSyncResult{Market: market.Name, Error: "non-positive price"})
			failed++
			continue
		}

		if err := s.marketRepo.UpdatePrice(ctx, market.ID, price); err != nil {
			s.log.ErrorContext(ctx, "Failed to persist price",
				logger.ErrorField(err),
				logger.StringField("market", market.Name),
			)
			results = append(results, MarketPriceSyncResult{Market: market.Name, Error: err.Error()})
			failed++
			continue
		}
		results = append(results, MarketPriceSyncResult{Market: market.Name, Price: price.String()})
	}

	output, _ := json.Marshal(results)
	exitCode := int32(JOB_EXIT_CODE_SUCCESS)
	if failed == len(markets) {
		exitCode = JOB_EXIT_CODE_FAILED
	} else if failed > 0 {
		exitCode = JOB_EXIT_CODE_PARTIAL_SUCCESS
	}
	return JobResult{ExitCode: exitCode, Output: string(output)}, nil
}

func (s *MarketPriceSyncStrategy) GetType() JobType {
	return JobTypeMarketPriceSync
}
