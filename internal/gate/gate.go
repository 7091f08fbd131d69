// Package gate implements the interactive human approval step.
package gate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/chapter-cli/internal/console"
	"github.com/sells-group/chapter-cli/internal/model"
)

// EndMarker terminates multi-line edited text.
const EndMarker = "END"

const maxLineBytes = 1 << 20

// Approver asks a human to accept, edit or reject a candidate chapter.
type Approver interface {
	RequestApproval(ctx context.Context, original, candidate string, report *model.QualityReport) (model.Verdict, error)
}

// Gate is a terminal Approver reading from in and writing to out. A Gate
// serves one pending approval at a time.
type Gate struct {
	out       io.Writer
	threshold float64

	in    io.Reader
	once  sync.Once
	lines chan string
}

// New creates a Gate. threshold drives the quality banner.
func New(in io.Reader, out io.Writer, threshold float64) *Gate {
	return &Gate{in: in, out: out, threshold: threshold}
}

// RequestApproval blocks until the human decides. Interrupts and end of
// input produce an interrupted rejection.
func (g *Gate) RequestApproval(ctx context.Context, original, candidate string, report *model.QualityReport) (model.Verdict, error) {
	g.present(original, candidate, report)

	for {
		fmt.Fprint(g.out, "\n[A]ccept / [E]dit / [R]eject: ")
		line, ok := g.readLine(ctx)
		if !ok {
			return interrupted(), nil
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "accept":
			return model.Verdict{Status: model.StatusAccepted, FinalText: candidate}, nil

		case "e", "edit":
			text, ok := g.readEdit(ctx)
			if !ok {
				return interrupted(), nil
			}
			if text == "" {
				yes, ok := g.confirm(ctx, "Edited text is empty. Record an empty chapter? [y/N]: ")
				if !ok {
					return interrupted(), nil
				}
				if !yes {
					continue
				}
			}
			return model.Verdict{Status: model.StatusEdited, FinalText: text}, nil

		case "r", "reject":
			yes, ok := g.confirm(ctx, "Reject this chapter? [y/N]: ")
			if !ok {
				return interrupted(), nil
			}
			if yes {
				return model.Verdict{Status: model.StatusRejected}, nil
			}

		default:
			console.Warn(g.out, "Invalid choice %q. Enter A, E or R.", strings.TrimSpace(line))
		}
	}
}

func (g *Gate) present(original, candidate string, report *model.QualityReport) {
	fmt.Fprintln(g.out, console.EvaluationSummary(report))
	console.QualityBanner(g.out, report, g.threshold)
	fmt.Fprintln(g.out, console.SideBySide(original, candidate))
}

func (g *Gate) readEdit(ctx context.Context) (string, bool) {
	console.Info(g.out, "Enter the edited chapter. Finish with a line containing only %s.", EndMarker)
	var lines []string
	for {
		line, ok := g.readLine(ctx)
		if !ok {
			return "", false
		}
		if strings.TrimSpace(line) == EndMarker {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, line)
	}
}

func (g *Gate) confirm(ctx context.Context, prompt string) (yes, ok bool) {
	fmt.Fprint(g.out, prompt)
	line, ok := g.readLine(ctx)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, true
	default:
		return false, true
	}
}

// readLine returns the next input line. ok is false on cancellation or end of
// input.
func (g *Gate) readLine(ctx context.Context) (string, bool) {
	g.once.Do(g.startReader)
	select {
	case <-ctx.Done():
		zap.L().Warn("gate: interrupted", zap.Error(ctx.Err()))
		return "", false
	case line, open := <-g.lines:
		if !open {
			zap.L().Warn("gate: input closed")
			return "", false
		}
		return line, true
	}
}

func (g *Gate) startReader() {
	g.lines = make(chan string)
	go func() {
		defer close(g.lines)
		sc := bufio.NewScanner(g.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			g.lines <- strings.TrimSuffix(sc.Text(), "\r")
		}
		if err := sc.Err(); err != nil {
			zap.L().Warn("gate: read input", zap.Error(err))
		}
	}()
}

func interrupted() model.Verdict {
	return model.Verdict{Status: model.StatusRejected, Interrupted: true}
}
