package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Dicklesworthstone/opsdash/internal/model"
)

// ErrAborted is returned when the input ends before a successful login.
var ErrAborted = errors.New("login aborted")

// Prompt is the terminal login form.
type Prompt struct {
	gate *Gate
	in   io.Reader
	out  io.Writer
}

func NewPrompt(gate *Gate, in io.Reader, out io.Writer) *Prompt {
	return &Prompt{gate: gate, in: in, out: out}
}

// Run asks for credentials until the gate lets the user through.
func (p *Prompt) Run(ctx context.Context) error {
	r := bufio.NewReader(p.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(p.out, "Username: ")
		username, err := readLine(r)
		if err != nil {
			return ErrAborted
		}
		fmt.Fprint(p.out, "Password: ")
		password, err := p.readPassword(r)
		if err != nil {
			return ErrAborted
		}

		out := p.gate.Submit(ctx, model.Credentials{
			Username: strings.TrimSpace(username),
			Password: password,
		})
		if out.Kind == NavigateDashboard {
			return nil
		}
		fmt.Fprintf(p.out, "Error: %s\n\n", out.Message)
	}
}

func (p *Prompt) readPassword(r *bufio.Reader) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		return string(b), err
	}
	return readLine(r)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
