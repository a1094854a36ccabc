package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/pricefleet/repricer/pkg/secrets"
)

const emailCharset = "UTF-8"

// SESSender delivers notifications through Amazon SES.
type SESSender struct {
	client *sesv2.Client
	sender string
}

// NewSESSender creates an SES-backed Sender for the given region and verified
// sender address.
func NewSESSender(region, sender string) (*SESSender, error) {
	cfg, err := secrets.LoadAWSConfig(region)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESSender{
		client: sesv2.NewFromConfig(cfg),
		sender: sender,
	}, nil
}

func (s *SESSender) Send(ctx context.Context, recipients []string, subject, body string) (string, error) {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String(emailCharset),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String(emailCharset),
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
