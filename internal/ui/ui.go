// Package ui provides the interactive prompts of the CLI.
package ui

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

const pageSize = 15

var errNoChoices = errors.New("nothing to choose from")

// ErrNoChoices is returned when a picker is given an empty list.
var ErrNoChoices = errNoChoices

// Prompter asks the user questions. The survey-backed implementation is
// [NewPrompter]; tests substitute their own.
type Prompter interface {
	Select(message string, options []string) (string, error)
	Confirm(message string, def bool) (bool, error)
}

type surveyPrompter struct{}

// NewPrompter returns a Prompter reading from the terminal.
//
//nolint:ireturn // Callers depend on the Prompter abstraction.
func NewPrompter() Prompter {
	return surveyPrompter{}
}

func (surveyPrompter) Select(message string, options []string) (string, error) {
	var selected string
	prompt := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: pageSize,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", fmt.Errorf("failed to get selection: %w", err)
	}
	return selected, nil
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	ok := def
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &ok); err != nil {
		return false, fmt.Errorf("failed to get confirmation: %w", err)
	}
	return ok, nil
}

// PickRepository asks the user to choose one of repos.
func PickRepository(p Prompter, repos []string) (string, error) {
	if len(repos) == 0 {
		return "", errNoChoices
	}
	if len(repos) == 1 {
		return repos[0], nil
	}
	return p.Select("Choose a repository:", repos)
}
