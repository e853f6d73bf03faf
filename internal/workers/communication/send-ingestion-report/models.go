package sendingestionreport

import (
	"context"

	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/models"
)

type Input struct {
	Report     models.IngestionReport `json:"report"`
	Recipients []string               `json:"recipients,omitempty"`
}

type Output struct {
	Subject        string `json:"subject"`
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SNSMessageID   string `json:"snsMessageId,omitempty"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
}

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendTextEmail(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

// Publisher is satisfied by aws.SNSClient.
type Publisher interface {
	PublishJSON(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

type ServiceDependencies struct {
	Email     EmailSender
	Publisher Publisher
	Logger    logger.Logger
}
