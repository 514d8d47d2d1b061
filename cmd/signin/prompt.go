package main

import (
	"context"
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/yourusername/signin/internal/credentials"
)

// errAborted は利用者が入力を中断したことを表します（Ctrl+C など）。
var errAborted = errors.New("signin: aborted")

// prompter は端末での入力を抽象化します。テストでは差し替えます。
type prompter interface {
	Input(ctx context.Context, message, def string, field credentials.Field) (string, error)
	Password(ctx context.Context, message string, field credentials.Field) (string, error)
	Confirm(ctx context.Context, message string, def bool) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(ctx context.Context, message, def string, field credentials.Field) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{
		Message: message,
		Default: def,
	}
	if err := survey.AskOne(prompt, &out, survey.WithValidator(fieldValidator(field))); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Password(ctx context.Context, message string, field credentials.Field) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Password{
		Message: message,
	}
	if err := survey.AskOne(prompt, &out, survey.WithValidator(fieldValidator(field))); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	prompt := &survey.Confirm{
		Message: message,
		Default: def,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

// fieldValidator は入力欄の検証規則を survey の Validator として返します。
func fieldValidator(field credentials.Field) survey.Validator {
	return func(ans interface{}) error {
		value, _ := ans.(string)
		c, err := credentials.Credentials{}.With(field, value)
		if err != nil {
			return err
		}
		if fe, ok := credentials.ValidateField(c, field)[field]; ok {
			return errors.New(fe.Message)
		}
		return nil
	}
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}
