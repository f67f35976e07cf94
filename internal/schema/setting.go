package schema

import (
	"fmt"

	"github.com/user/chatverse/internal/form"
)

// GroupSetting tunes a group agent run.
type GroupSetting struct {
	Investment   float64 `mapstructure:"investment"`
	Implement    bool    `mapstructure:"implement"`
	CodeReview   bool    `mapstructure:"code_review"`
	OpenAIAPIKey string  `mapstructure:"openai_api_key"`
	RunTests     bool    `mapstructure:"run_tests"`
}

func DefaultGroupSetting() *GroupSetting {
	return &GroupSetting{Investment: 3, Implement: true, CodeReview: true}
}

func (s *GroupSetting) Fields(form.Mode) []form.Field {
	return []form.Field{
		{Name: "investment", Title: "Upper Limit in OpenAI API usage in USD", Type: form.Float},
		{Name: "implement", Title: "Generate Application Code", Type: form.Bool},
		{Name: "code_review", Title: "Enable Code Review", Type: form.Bool},
		{Name: "openai_api_key", Title: "The OpenAI API key", Type: form.SecretString},
		{Name: "run_tests", Title: "Generate Test Cases for the application", Type: form.Bool},
	}
}

func (s *GroupSetting) Value(name string) any {
	switch name {
	case "investment":
		return s.Investment
	case "implement":
		return s.Implement
	case "code_review":
		return s.CodeReview
	case "openai_api_key":
		return s.OpenAIAPIKey
	case "run_tests":
		return s.RunTests
	}
	return nil
}

func (s *GroupSetting) SetValue(name string, v any) error {
	var err error
	switch name {
	case "investment":
		s.Investment, err = asFloat(v)
	case "implement":
		s.Implement, err = asBool(v)
	case "code_review":
		s.CodeReview, err = asBool(v)
	case "openai_api_key":
		s.OpenAIAPIKey, err = asString(v)
	case "run_tests":
		s.RunTests, err = asBool(v)
	default:
		return fmt.Errorf("%s: not a setting", name)
	}
	return err
}

func (s *GroupSetting) Validate() error {
	var errs form.ValidationErrors
	if s.Investment < 0 {
		errs.Add("investment", "must not be negative")
	}
	return errs.Err()
}
