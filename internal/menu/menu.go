// Package menu is the interactive control surface: it maps raw operator
// input to typed actions and asks the confirmation questions. It contains no
// backup or restore logic of its own.
package menu

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Action is one of the closed set of operator actions. Raw input is mapped
// to an Action exactly once, at this boundary.
type Action int

const (
	ActionUnknown Action = iota
	ActionFullBackup
	ActionFullRestore
	ActionDataBackup
	ActionGuidedRestore
	ActionOfflineBackup
	ActionStatus
	ActionScheduleConfigure
	ActionScheduleShow
	ActionScheduleDelete
	ActionExit
)

// ConfirmToken is the only input that lets a destructive restore proceed.
const ConfirmToken = "yes"

// Text is the interactive menu shown between actions.
const Text = `
relayops — relayx backup and restore
  1) Full backup (stack stays up)
  2) Full restore
  3) Data backup (database only)
  4) Guided restore
  5) Offline full backup (stops the stack, snapshots raw volumes)
  6) Status
  7) Configure schedule
  8) Show schedule
  9) Delete schedule
  0) Exit
`

var actionsByChoice = map[string]Action{
	"1": ActionFullBackup,
	"2": ActionFullRestore,
	"3": ActionDataBackup,
	"4": ActionGuidedRestore,
	"5": ActionOfflineBackup,
	"6": ActionStatus,
	"7": ActionScheduleConfigure,
	"8": ActionScheduleShow,
	"9": ActionScheduleDelete,
	"0": ActionExit,
}

// ParseAction maps a raw menu choice to an Action.
func ParseAction(input string) Action {
	if a, ok := actionsByChoice[strings.TrimSpace(input)]; ok {
		return a
	}
	return ActionUnknown
}

// Prompter reads operator answers line by line.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter creates a Prompter over the given streams.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Line prints the prompt and returns the next trimmed input line. EOF yields
// an empty string.
func (p *Prompter) Line(prompt string) string {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		return ""
	}
	return strings.TrimSpace(p.in.Text())
}

// ConfirmExact requires the exact affirmative token; any other input,
// including case variants, declines.
func (p *Prompter) ConfirmExact(prompt, token string) bool {
	answer := p.Line(fmt.Sprintf("%s Type '%s' to continue: ", prompt, token))
	return answer == token
}

// ConfirmDefaultYes accepts on empty input; only an explicit n/no declines.
func (p *Prompter) ConfirmDefaultYes(prompt string) bool {
	answer := strings.ToLower(p.Line(prompt + " [Y/n]: "))
	return answer != "n" && answer != "no"
}

// ConfirmDefaultNo declines on anything but an explicit y/yes.
func (p *Prompter) ConfirmDefaultNo(prompt string) bool {
	answer := strings.ToLower(p.Line(prompt + " [y/N]: "))
	return answer == "y" || answer == "yes"
}
