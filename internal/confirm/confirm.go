// Package confirm blocks destructive actions behind an operator-supplied
// literal token. The token set is closed and comparison is exact and
// case-sensitive: anything else is a decline.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Token is one of the recognized confirmation literals.
type Token string

const (
	// TokenYes proceeds with batch deletion.
	TokenYes Token = "YES"
	// TokenRemove proceeds with retention-settings removal.
	TokenRemove Token = "REMOVE"
	// TokenDelete proceeds with an irreversible purge.
	TokenDelete Token = "DELETE"
)

// Gate obtains a confirmation response for an intended action.
type Gate interface {
	Prompt(message string) (string, error)
}

// Match reports whether input is exactly the required token. No case
// folding: "yes" does not confirm TokenYes.
func Match(input string, required Token) bool {
	return strings.TrimRight(input, "\r\n") == string(required)
}

// Ask prompts through the gate and reports whether the operator confirmed.
// A gate error is treated as a decline and returned for logging.
func Ask(g Gate, message string, required Token) (bool, error) {
	resp, err := g.Prompt(message)
	if err != nil {
		return false, err
	}
	return Match(resp, required), nil
}

// StdinGate prompts on Out and reads a single line from In. One buffered
// reader is kept across prompts; with piped input a fresh reader per prompt
// would lose lines already read ahead into a discarded buffer.
type StdinGate struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

// Prompt writes the message and blocks for one line of input.
func (g *StdinGate) Prompt(message string) (string, error) {
	if g.r == nil {
		g.r = bufio.NewReader(g.In)
	}
	fmt.Fprintf(g.Out, "%s ", message)
	line, err := g.r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read confirmation: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
