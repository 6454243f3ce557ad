// Package invalidator submits CloudFront invalidations and waits for them to complete.
package invalidator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/constants"
	errs "github.com/savaki/site-deployer/internal/errors"
)

// CloudFrontAPI abstracts the CloudFront invalidation operations for testing
type CloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
	GetInvalidation(ctx context.Context, params *cloudfront.GetInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetInvalidationOutput, error)
}

// Policy bounds the wait for an invalidation. It polls immediately, then
// every Interval, for at most MaxAttempts polls.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy polls every 20 seconds, 30 times.
func DefaultPolicy() Policy {
	return Policy{Interval: constants.PollInterval, MaxAttempts: constants.PollMaxAttempts}
}

// NewPolicy builds a policy; zero or negative values fall back to the defaults.
func NewPolicy(interval time.Duration, maxAttempts int) Policy {
	p := DefaultPolicy()
	if interval > 0 {
		p.Interval = interval
	}
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	return p
}

// Result describes a completed invalidation
type Result struct {
	ID       string
	Status   string
	Paths    []string
	Attempts int // status polls made while waiting
}

// Invalidator creates invalidations for a single distribution
type Invalidator struct {
	client         CloudFrontAPI
	distributionID string
	policy         Policy
	sleep          func(ctx context.Context, d time.Duration) error
}

// New creates an Invalidator for distributionID
func New(client CloudFrontAPI, distributionID string, policy Policy) *Invalidator {
	return &Invalidator{
		client:         client,
		distributionID: distributionID,
		policy:         policy,
		sleep:          sleep,
	}
}

// Invalidate submits a single invalidation batch for paths, tagged with
// callerReference, and blocks until CloudFront reports it Completed or the
// policy's attempt budget runs out, in which case the returned error wraps
// errors.ErrInvalidationTimeout.
func (i *Invalidator) Invalidate(ctx context.Context, paths []string, callerReference string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no invalidation paths", errs.ErrInvalidSetting)
	}

	logger.Info().
		Str("distribution_id", i.distributionID).
		Strs("paths", paths).
		Str("caller_reference", callerReference).
		Msg("Creating CloudFront invalidation")

	created, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(callerReference),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		logAPIError(logger, err)
		return nil, fmt.Errorf("failed to create invalidation for distribution %s: %w", i.distributionID, err)
	}
	if created.Invalidation == nil {
		return nil, fmt.Errorf("%w: empty CreateInvalidation response", errs.ErrInvalidationNotFound)
	}

	id := aws.ToString(created.Invalidation.Id)
	logger.Info().
		Str("invalidation_id", id).
		Str("status", aws.ToString(created.Invalidation.Status)).
		Msg("Created CloudFront invalidation")

	attempts, err := i.wait(ctx, id)
	if err != nil {
		return nil, err
	}

	status, err := i.status(ctx, id)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("invalidation_id", id).
		Str("status", status).
		Int("attempts", attempts).
		Msg("CloudFront invalidation finished")

	return &Result{
		ID:       id,
		Status:   status,
		Paths:    paths,
		Attempts: attempts,
	}, nil
}

// wait polls the invalidation until it completes and returns the number of polls made.
func (i *Invalidator) wait(ctx context.Context, id string) (int, error) {
	logger := zerolog.Ctx(ctx)

	for attempt := 1; attempt <= i.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := i.sleep(ctx, i.policy.Interval); err != nil {
				return attempt - 1, fmt.Errorf("stopped waiting for invalidation %s: %w", id, err)
			}
		}

		status, err := i.status(ctx, id)
		if err != nil {
			return attempt, err
		}

		logger.Debug().
			Str("invalidation_id", id).
			Str("status", status).
			Int("attempt", attempt).
			Int("max_attempts", i.policy.MaxAttempts).
			Msg("Polled CloudFront invalidation")

		if status == constants.InvalidationCompleted {
			return attempt, nil
		}
	}

	return i.policy.MaxAttempts, fmt.Errorf("%w: invalidation %s not completed after %d attempts",
		errs.ErrInvalidationTimeout, id, i.policy.MaxAttempts)
}

func (i *Invalidator) status(ctx context.Context, id string) (string, error) {
	output, err := i.client.GetInvalidation(ctx, &cloudfront.GetInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		Id:             aws.String(id),
	})
	if err != nil {
		var notFound *cftypes.NoSuchInvalidation
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", errs.ErrInvalidationNotFound, id)
		}
		logAPIError(zerolog.Ctx(ctx), err)
		return "", fmt.Errorf("failed to get invalidation %s: %w", id, err)
	}
	if output.Invalidation == nil {
		return "", fmt.Errorf("%w: %s", errs.ErrInvalidationNotFound, id)
	}
	return aws.ToString(output.Invalidation.Status), nil
}

func logAPIError(logger *zerolog.Logger, err error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		logger.Error().
			Str("code", apiErr.ErrorCode()).
			Str("message", apiErr.ErrorMessage()).
			Msg("CloudFront API error")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
