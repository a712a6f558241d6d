package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/weather-notify/internal/config"
	"github.com/weather-notify/internal/infrastructure/awsconf"
)

type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher posts messages to one SNS topic.
type Publisher struct {
	client   publishAPI
	topicARN string
}

func NewPublisher(ctx context.Context, cfg *config.Config) (*Publisher, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newPublisher(sns.NewFromConfig(awsCfg, clientOpts...), cfg.SweepTopicARN), nil
}

func newPublisher(client publishAPI, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

func (p *Publisher) Publish(ctx context.Context, subject, message string) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	return err
}
