package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// cloudFrontRegion signs requests to the global CloudFront endpoint
const cloudFrontRegion = "us-east-1"

func ProvideAWSConfig(ctx context.Context, region Region, profile Profile) (aws.Config, error) {
	var optFns []func(*config.LoadOptions) error
	if region != "" {
		optFns = append(optFns, config.WithRegion(string(region)))
	}
	if profile != "" {
		optFns = append(optFns, config.WithSharedConfigProfile(string(profile)))
	}
	return config.LoadDefaultConfig(ctx, optFns...)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideCloudFrontClient(config aws.Config) *cloudfront.Client {
	return cloudfront.NewFromConfig(config, func(o *cloudfront.Options) {
		if o.Region == "" {
			o.Region = cloudFrontRegion
		}
	})
}

func ProvideSTSClient(config aws.Config) *sts.Client {
	return sts.NewFromConfig(config)
}

// ProvideSSMClient provides an SSM client for Parameter Store access
func ProvideSSMClient(config aws.Config) *ssm.Client {
	return ssm.NewFromConfig(config)
}
