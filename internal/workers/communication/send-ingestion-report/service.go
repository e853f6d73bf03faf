package sendingestionreport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"dishlist-workers/internal/common/logger"
	"dishlist-workers/internal/models"
)

var (
	ErrInvalidInput      = errors.New("INVALID_INPUT")
	ErrEmailSendFailed   = errors.New("EMAIL_SEND_FAILED")
	ErrPublishFailed     = errors.New("SNS_PUBLISH_FAILED")
	ErrNothingConfigured = errors.New("NO_CHANNEL_CONFIGURED")
)

var reportBody = template.Must(template.New("report").Parse(`DishList ingestion report

Run:       {{.RunID}}
City:      {{.CitySlug}}
Category:  {{.CategorySlug}}
Started:   {{.StartedAt.Format "2006-01-02 15:04:05 MST"}}
Duration:  {{.FinishedAt.Sub .StartedAt}}

Succeeded: {{.Succeeded}}
Failed:    {{.Failed}}
{{range .Results}}
- {{.Name}}: {{if .Success}}ok{{if .Note}} ({{.Note}}){{end}}{{else}}FAILED: {{.Error}}{{end}}{{end}}
`))

type reportView struct {
	models.IngestionReport
	Succeeded int
	Failed    int
}

type snsMessage struct {
	RunID        string `json:"runId"`
	CitySlug     string `json:"citySlug"`
	CategorySlug string `json:"categorySlug"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
}

type Service struct {
	config    *Config
	email     EmailSender
	publisher Publisher
	logger    logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:    config,
		email:     deps.Email,
		publisher: deps.Publisher,
		logger:    deps.Logger,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	report := input.Report
	if strings.TrimSpace(report.RunID) == "" {
		return nil, fmt.Errorf("%w: report.runId is required", ErrInvalidInput)
	}
	emailOn := s.config.EmailEnabled && s.email != nil
	snsOn := s.config.SNSEnabled && s.publisher != nil
	if !emailOn && !snsOn {
		return nil, ErrNothingConfigured
	}

	succeeded, failed := report.Counts()
	out := &Output{
		Subject:   Subject(report, succeeded, failed),
		Succeeded: succeeded,
		Failed:    failed,
	}

	if emailOn {
		recipients := input.Recipients
		if len(recipients) == 0 {
			recipients = s.config.Recipients
		}
		if len(recipients) == 0 {
			return nil, fmt.Errorf("%w: no report recipients", ErrInvalidInput)
		}

		body, err := RenderBody(report)
		if err != nil {
			return nil, fmt.Errorf("%w: render: %v", ErrEmailSendFailed, err)
		}
		id, err := s.email.SendTextEmail(ctx, s.config.FromEmail, recipients, out.Subject, body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
		}
		out.EmailMessageID = id
	}

	if snsOn {
		id, err := s.publish(ctx, report, succeeded, failed)
		switch {
		case err != nil && out.EmailMessageID == "":
			return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
		case err != nil:
			// The email already went out; retrying the job would send it twice.
			s.logger.Warn("report publish failed", map[string]interface{}{
				"runId": report.RunID,
				"error": err,
			})
		default:
			out.SNSMessageID = id
		}
	}

	s.logger.Info("ingestion report sent", map[string]interface{}{
		"runId":     report.RunID,
		"emailId":   out.EmailMessageID,
		"snsId":     out.SNSMessageID,
		"succeeded": succeeded,
		"failed":    failed,
	})
	return out, nil
}

func (s *Service) publish(ctx context.Context, report models.IngestionReport, succeeded, failed int) (string, error) {
	msg, err := json.Marshal(snsMessage{
		RunID:        report.RunID,
		CitySlug:     report.CitySlug,
		CategorySlug: report.CategorySlug,
		Succeeded:    succeeded,
		Failed:       failed,
	})
	if err != nil {
		return "", err
	}
	return s.publisher.PublishJSON(ctx, s.config.TopicARN, "dishlist.ingestion.report", string(msg), map[string]string{
		"eventType": "ingestion.report",
		"citySlug":  report.CitySlug,
	})
}

// Subject is the one-line summary used for the email subject.
func Subject(report models.IngestionReport, succeeded, failed int) string {
	return fmt.Sprintf("DishList ingestion %s/%s: %d ok, %d failed",
		report.CitySlug, report.CategorySlug, succeeded, failed)
}

// RenderBody renders the plain text email body of a report.
func RenderBody(report models.IngestionReport) (string, error) {
	succeeded, failed := report.Counts()
	var buf bytes.Buffer
	if err := reportBody.Execute(&buf, reportView{IngestionReport: report, Succeeded: succeeded, Failed: failed}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
