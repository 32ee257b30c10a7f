// internal/workers/communication/submit-feedback/sinks.go
package submitfeedback

import (
	"context"
	"encoding/json"
	"time"

	"shopping-assistant/internal/common/aws"
	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
)

// Sink delivers one feedback message and returns a delivery id when the
// backend provides one.
type Sink interface {
	Name() string
	Send(ctx context.Context, input *Input) (string, error)
}

type FormspreeSink struct {
	url    string
	client *httpclient.Client
}

func NewFormspreeSink(url string, client *httpclient.Client) *FormspreeSink {
	if client == nil {
		client = httpclient.NewClient(10 * time.Second)
	}
	return &FormspreeSink{url: url, client: client}
}

func (s *FormspreeSink) Name() string { return SinkFormspree }

func (s *FormspreeSink) Send(ctx context.Context, input *Input) (string, error) {
	payload := map[string]string{"message": input.Message}
	if input.TurnID != "" {
		payload["turnId"] = input.TurnID
	}

	body, err := s.client.PostJSON(ctx, s.url, payload, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	return resp.ID, nil
}

type SESSink struct {
	client  *aws.SESClient
	from    string
	to      string
	subject string
}

func NewSESSink(client *aws.SESClient, from, to, subject string) *SESSink {
	return &SESSink{client: client, from: from, to: to, subject: subject}
}

func (s *SESSink) Name() string { return SinkSES }

func (s *SESSink) Send(ctx context.Context, input *Input) (string, error) {
	body := input.Message
	if input.TurnID != "" {
		body += "\n\nTurn: " + input.TurnID
	}
	return s.client.SendText(ctx, s.from, s.to, s.subject, body)
}

type SNSSink struct {
	client   *aws.SNSClient
	topicARN string
	subject  string
}

func NewSNSSink(client *aws.SNSClient, topicARN, subject string) *SNSSink {
	return &SNSSink{client: client, topicARN: topicARN, subject: subject}
}

func (s *SNSSink) Name() string { return SinkSNS }

func (s *SNSSink) Send(ctx context.Context, input *Input) (string, error) {
	var attrs map[string]string
	if input.TurnID != "" {
		attrs = map[string]string{"turnId": input.TurnID}
	}
	return s.client.PublishText(ctx, s.topicARN, s.subject, input.Message, attrs)
}

// LogSink only records the message in the service log.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Name() string { return SinkLog }

func (s *LogSink) Send(_ context.Context, input *Input) (string, error) {
	s.logger.Info("feedback received", map[string]interface{}{
		"message": input.Message,
		"turnId":  input.TurnID,
	})
	return "", nil
}

// NewSink builds the sink selected in config. AWS clients are created only
// for the sink that needs them.
func NewSink(ctx context.Context, cfg *Config, region string, client *httpclient.Client, log logger.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Sink {
	case SinkFormspree:
		if client == nil {
			client = httpclient.NewClient(cfg.Timeout)
		}
		return NewFormspreeSink(cfg.FormspreeURL, client), nil
	case SinkSES:
		ses, err := aws.NewSESClient(ctx, region)
		if err != nil {
			return nil, err
		}
		return NewSESSink(ses, cfg.SESFrom, cfg.SESTo, cfg.Subject), nil
	case SinkSNS:
		sns, err := aws.NewSNSClient(ctx, region)
		if err != nil {
			return nil, err
		}
		return NewSNSSink(sns, cfg.SNSTopicARN, cfg.Subject), nil
	}
	return NewLogSink(log), nil
}
