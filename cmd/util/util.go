package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/buger/goterm"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/remote-mirror/pkg/errors"
)

// Mocked out for unit testing.
var (
	stdin            = bufio.NewReader(os.Stdin)
	stderr io.Writer = os.Stderr
	exit             = os.Exit

	isTerminal   = func() bool { return terminal.IsTerminal(int(os.Stdin.Fd())) }
	readPassword = func() ([]byte, error) { return terminal.ReadPassword(int(syscall.Stdin)) }
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	fmt.Fprintln(stderr, goterm.Color(errors.GetPrintableMessage(err), goterm.RED))
	log.WithError(err).Debug("Fatal error")
	exit(1)
}

// HandlePanic logs the stack trace of a panic in a goroutine before exiting.
// It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		exit(1)
	}
}

// IsTerminal returns whether stdin is an interactive terminal.
func IsTerminal() bool {
	return isTerminal()
}

// PromptYesOrNo asks the user a yes or no question. Anything other than an
// answer starting with "y" counts as no.
func PromptYesOrNo(prompt string) (bool, error) {
	answer, err := Prompt(prompt + " (y/N) ")
	if err != nil {
		return false, err
	}

	answer = strings.ToLower(answer)
	return strings.HasPrefix(answer, "y"), nil
}

// Prompt prints `prompt` and returns the line typed by the user, without
// surrounding whitespace.
func Prompt(prompt string) (string, error) {
	fmt.Fprint(stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", errors.WithContext(err, "read input")
	}
	return strings.TrimSpace(line), nil
}

// PromptSecret is like Prompt, but doesn't echo the user's input.
func PromptSecret(prompt string) (string, error) {
	if !isTerminal() {
		return Prompt(prompt)
	}

	fmt.Fprint(stderr, prompt)
	secret, err := readPassword()
	fmt.Fprintln(stderr)
	if err != nil {
		return "", errors.WithContext(err, "read secret")
	}
	return strings.TrimSpace(string(secret)), nil
}
