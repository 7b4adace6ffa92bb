package booking

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dosehunt/dosehunt/internal/doctolib"
)

const (
	// The recent-infection intake question is always answered "No": an
	// account hunting a first dose has no recent infection to declare.
	infectionFieldID = "cov19"
	infectionAnswer  = "Non"
)

// AnswerProvider supplies answers for required intake fields that have no
// usable default. Finalization blocks until every field is answered.
type AnswerProvider interface {
	Answer(ctx context.Context, field doctolib.CustomField) (string, error)
}

// StaticAnswers answers fields from a fixed id->value map.
type StaticAnswers map[string]string

func (a StaticAnswers) Answer(_ context.Context, field doctolib.CustomField) (string, error) {
	if value, ok := a[field.ID]; ok {
		return value, nil
	}
	return "", fmt.Errorf("no answer for intake field %q (%s)", field.ID, field.Label)
}

// StdinPrompt asks the operator on the terminal and blocks for a reply.
type StdinPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdinPrompt returns a prompt reading from stdin and writing to stderr.
func NewStdinPrompt() *StdinPrompt {
	return &StdinPrompt{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

// NewPrompt returns a prompt over the given reader and writer.
func NewPrompt(in io.Reader, out io.Writer) *StdinPrompt {
	return &StdinPrompt{in: bufio.NewReader(in), out: out}
}

func (p *StdinPrompt) Answer(_ context.Context, field doctolib.CustomField) (string, error) {
	fmt.Fprintf(p.out, "%s (%s): ", field.Label, field.Placeholder)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read intake answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ResolveFields answers every required intake field: the recent-infection
// question gets its fixed answer, fields with a placeholder use it as the
// default, and anything else is delegated to the provider.
func ResolveFields(ctx context.Context, fields []doctolib.CustomField, provider AnswerProvider) (map[string]string, error) {
	answers := make(map[string]string, len(fields))
	for _, field := range fields {
		if !field.Required {
			continue
		}

		switch {
		case field.ID == infectionFieldID:
			answers[field.ID] = infectionAnswer
		case field.Placeholder != "":
			answers[field.ID] = field.Placeholder
		default:
			value, err := provider.Answer(ctx, field)
			if err != nil {
				return nil, fmt.Errorf("resolve intake field %q: %w", field.ID, err)
			}
			answers[field.ID] = value
		}
	}
	return answers, nil
}
