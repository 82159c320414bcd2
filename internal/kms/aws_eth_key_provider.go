package kms

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"

	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

// AwsEthKeyProviderConfig is a config for the Secrets Manager key provider.
// AccessKey and SecretKey are optional, the default credential chain is used when empty.
type AwsEthKeyProviderConfig struct {
	AccessKey  string
	SecretKey  string
	Region     string
	SecretName string
}

type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type awsEthKeyProvider struct {
	secretManager secretValueGetter
	secretName    string
}

// NewAwsEthKeyProvider creates a provider reading the key from AWS Secrets Manager.
// Region "local" points the client to a localstack endpoint.
func NewAwsEthKeyProvider(ctx context.Context, conf AwsEthKeyProviderConfig) (*awsEthKeyProvider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(conf.Region)}
	if conf.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Error(ctx, "error loading AWS config", "err", err)
		return nil, err
	}

	var options []func(*secretsmanager.Options)
	if strings.ToLower(conf.Region) == "local" {
		options = append(options, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String("http://localhost:4566")
		})
	}

	return &awsEthKeyProvider{
		secretManager: secretsmanager.NewFromConfig(cfg, options...),
		secretName:    conf.SecretName,
	}, nil
}

func (a *awsEthKeyProvider) PrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	out, err := a.secretManager.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretName),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading secret %s", a.secretName)
	}
	if out.SecretString == nil {
		return nil, ErrNoKeyMaterial
	}
	return keyFromSecretString(*out.SecretString)
}
