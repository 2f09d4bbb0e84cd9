package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acceptevm/acceptevm.go/eth"
)

// estimateDynamicFees derives fee-market pricing for a sweep from the
// most recent block: the averaged max fee and priority fee across its
// fee-market transactions, with the max fee floored at
// base fee + priority fee. Blocks without a base fee or without
// fee-market transactions are retried up to the configured budget,
// sleeping the configured delay in between; anything else (transport,
// malformed response) fails the attempt immediately.
func (svc *GatewayService) estimateDynamicFees(ctx context.Context) (maxFeePerGas *big.Int, priorityFeePerGas *big.Int, err error) {
	operation := func() error {
		maxFeePerGas, priorityFeePerGas, err = svc.sampleDynamicFees(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, eth.ErrNoBaseFee) || errors.Is(err, eth.ErrNoFeeSamples) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(time.Duration(svc.Config.FeeEstimationRetryDelay)*time.Second),
		svc.Config.FeeEstimationRetryMax,
	), ctx)

	if retryErr := backoff.Retry(operation, policy); retryErr != nil {
		if errors.Is(retryErr, eth.ErrNoBaseFee) || errors.Is(retryErr, eth.ErrNoFeeSamples) {
			return nil, nil, fmt.Errorf("%w: %v", ErrFeeEstimationExhausted, retryErr)
		}
		return nil, nil, retryErr
	}
	return maxFeePerGas, priorityFeePerGas, nil
}

// sampleDynamicFees performs a single estimation attempt.
func (svc *GatewayService) sampleDynamicFees(ctx context.Context) (*big.Int, *big.Int, error) {
	baseFee, err := svc.LedgerClient.LatestBaseFee(ctx)
	if err != nil {
		return nil, nil, err
	}
	samples, err := svc.LedgerClient.RecentFeeSamples(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(samples) == 0 {
		return nil, nil, eth.ErrNoFeeSamples
	}

	totalMaxFee := new(big.Int)
	totalPriorityFee := new(big.Int)
	for _, sample := range samples {
		totalMaxFee.Add(totalMaxFee, sample.MaxFeePerGas)
		totalPriorityFee.Add(totalPriorityFee, sample.PriorityFeePerGas)
	}
	count := big.NewInt(int64(len(samples)))
	averageMaxFee := new(big.Int).Div(totalMaxFee, count)
	averagePriorityFee := new(big.Int).Div(totalPriorityFee, count)

	// Never price below what the current base fee demands.
	floor := new(big.Int).Add(baseFee, averagePriorityFee)
	if averageMaxFee.Cmp(floor) < 0 {
		averageMaxFee = floor
	}
	return averageMaxFee, averagePriorityFee, nil
}
