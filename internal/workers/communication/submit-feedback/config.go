// internal/workers/communication/submit-feedback/config.go
package submitfeedback

import (
	"fmt"
	"time"
)

const (
	SinkFormspree = "formspree"
	SinkSES       = "ses"
	SinkSNS       = "sns"
	SinkLog       = "log"
)

type Config struct {
	Sink         string        `mapstructure:"sink"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxLength    int           `mapstructure:"max_length"`
	FormspreeURL string        `mapstructure:"formspree_url"`
	SESFrom      string        `mapstructure:"ses_from"`
	SESTo        string        `mapstructure:"ses_to"`
	SNSTopicARN  string        `mapstructure:"sns_topic_arn"`
	Subject      string        `mapstructure:"subject"`
}

func DefaultConfig() *Config {
	return &Config{
		Sink:      SinkLog,
		Timeout:   10 * time.Second,
		MaxLength: 5000,
		Subject:   "Shopping assistant feedback",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	switch c.Sink {
	case SinkFormspree:
		if c.FormspreeURL == "" {
			return fmt.Errorf("formspree_url is required for the formspree sink")
		}
	case SinkSES:
		if c.SESFrom == "" || c.SESTo == "" {
			return fmt.Errorf("ses from and to addresses are required for the ses sink")
		}
	case SinkSNS:
		if c.SNSTopicARN == "" {
			return fmt.Errorf("sns topic_arn is required for the sns sink")
		}
	case SinkLog:
	default:
		return fmt.Errorf("unknown feedback sink %q", c.Sink)
	}
	return nil
}
