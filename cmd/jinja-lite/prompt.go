package main

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("prompt aborted")

// Prompter asks the user for the value of a context name.
type Prompter interface {
	Ask(name string) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Ask(name string) (string, error) {
	var out string
	prompt := &survey.Input{
		Message: fmt.Sprintf("Value for %s:", name),
		Help:    "Numbers, true/false and [a, b] lists are decoded as YAML; anything else is kept as text.",
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrAborted
		}
		return "", err
	}
	return out, nil
}
