package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"
)

// wordSeparators split multi-name answers for completion.
const wordSeparators = " ,"

// ui is what the setup flow needs from a terminal.
type ui interface {
	// Input reads one line. Suggestions drive tab completion of the word
	// under the cursor; an empty answer returns def.
	Input(label, def string, suggestions []prompt.Suggest) string

	// Password reads a line without echo.
	Password(label string) (string, error)

	Printf(format string, args ...any)
}

type terminalUI struct {
	fd int
}

func newTerminalUI() *terminalUI {
	return &terminalUI{fd: int(os.Stdin.Fd())}
}

func (t *terminalUI) Input(label, def string, suggestions []prompt.Suggest) string {
	prefix := label + ": "
	if def != "" {
		prefix = fmt.Sprintf("%s [%s]: ", label, def)
	}

	completer := func(d prompt.Document) []prompt.Suggest {
		if len(suggestions) == 0 {
			return nil
		}
		return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursorUntilSeparator(wordSeparators), true)
	}

	answer := strings.TrimSpace(prompt.Input(prefix, completer,
		prompt.OptionTitle("eclypsesetup"),
		prompt.OptionCompletionWordSeparator(wordSeparators),
		prompt.OptionPrefixTextColor(prompt.Cyan),
	))
	if answer == "" {
		return def
	}
	return answer
}

func (t *terminalUI) Password(label string) (string, error) {
	fmt.Print(label + ": ")
	b, err := term.ReadPassword(t.fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func (t *terminalUI) Printf(format string, args ...any) {
	fmt.Printf(format, args...)
}
