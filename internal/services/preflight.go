package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// STSAPI abstracts the STS identity lookup for testing
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// BucketAPI abstracts the S3 bucket probe for testing
type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// DistributionAPI abstracts the CloudFront distribution lookup for testing
type DistributionAPI interface {
	GetDistribution(ctx context.Context, params *cloudfront.GetDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error)
}

// PreflightReport describes the AWS resources a deploy will touch
type PreflightReport struct {
	Account            string
	ARN                string
	Bucket             string
	BucketRegion       string
	DistributionDomain string
	DistributionStatus string
}

// Preflight verifies credentials and access to the bucket and distribution
type Preflight struct {
	sts        STSAPI
	s3         BucketAPI
	cloudfront DistributionAPI
}

// NewPreflight creates a Preflight from AWS SDK clients
func NewPreflight(stsClient *sts.Client, s3Client *s3.Client, cfClient *cloudfront.Client) *Preflight {
	return NewPreflightWithDeps(stsClient, s3Client, cfClient)
}

// NewPreflightWithDeps creates a Preflight with injected dependencies (for testing)
func NewPreflightWithDeps(stsClient STSAPI, s3Client BucketAPI, cfClient DistributionAPI) *Preflight {
	return &Preflight{
		sts:        stsClient,
		s3:         s3Client,
		cloudfront: cfClient,
	}
}

// Check runs each probe in turn and stops at the first failure
func (p *Preflight) Check(ctx context.Context, settings *Settings) (*PreflightReport, error) {
	logger := zerolog.Ctx(ctx)

	identity, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		logAPIError(logger, err)
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	report := &PreflightReport{
		Account: aws.ToString(identity.Account),
		ARN:     aws.ToString(identity.Arn),
		Bucket:  settings.Bucket,
	}
	logger.Info().
		Str("account", report.Account).
		Str("arn", report.ARN).
		Msg("Resolved caller identity")

	bucket, err := p.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(settings.Bucket),
	})
	if err != nil {
		logAPIError(logger, err)
		return nil, fmt.Errorf("bucket %s is not accessible: %w", settings.Bucket, err)
	}
	report.BucketRegion = aws.ToString(bucket.BucketRegion)
	logger.Info().
		Str("bucket", settings.Bucket).
		Str("region", report.BucketRegion).
		Msg("Bucket is accessible")

	distribution, err := p.cloudfront.GetDistribution(ctx, &cloudfront.GetDistributionInput{
		Id: aws.String(settings.DistributionID),
	})
	if err != nil {
		logAPIError(logger, err)
		return nil, fmt.Errorf("distribution %s is not accessible: %w", settings.DistributionID, err)
	}
	if d := distribution.Distribution; d != nil {
		report.DistributionDomain = aws.ToString(d.DomainName)
		report.DistributionStatus = aws.ToString(d.Status)
	}
	logger.Info().
		Str("distribution_id", settings.DistributionID).
		Str("domain", report.DistributionDomain).
		Str("status", report.DistributionStatus).
		Msg("Distribution is accessible")

	return report, nil
}

func logAPIError(logger *zerolog.Logger, err error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		logger.Error().
			Str("code", apiErr.ErrorCode()).
			Str("message", apiErr.ErrorMessage()).
			Msg("AWS API error")
	}
}
