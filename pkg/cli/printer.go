package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/playwrighty/playwrighty/pkg/runtime"
)

// clearLine moves the cursor to column 0 and erases the line.
const clearLine = "\r\033[K"

// Printer writes user-facing output. On a terminal the progress of a run is
// one line rewritten in place; otherwise every change is appended.
type Printer struct {
	w   io.Writer
	tty bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
	faint  *color.Color

	turn        int
	indicator   string
	progressLen int
}

func NewPrinter(w io.Writer) *Printer {
	p := &Printer{
		w:      w,
		tty:    isTerminal(w),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
		faint:  color.New(color.Faint),
	}
	if !p.tty {
		for _, c := range []*color.Color{p.green, p.red, p.yellow, p.bold, p.faint} {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// width is the terminal width, or 0 when unknown.
func (p *Printer) width() int {
	f, ok := p.w.(*os.File)
	if !ok || !p.tty {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func (p *Printer) Println(a ...any) {
	p.endProgress()
	fmt.Fprintln(p.w, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	p.endProgress()
	fmt.Fprintf(p.w, format, a...)
}

func (p *Printer) Warn(format string, a ...any) {
	p.endProgress()
	p.yellow.Fprintf(p.w, "warning: "+format+"\n", a...)
}

// PrintHeader announces the test about to run.
func (p *Printer) PrintHeader(title, file string) {
	p.turn = 0
	p.indicator = ""
	p.progressLen = 0

	p.bold.Fprintf(p.w, "▶ %s", title)
	if file != "" && file != title {
		p.faint.Fprintf(p.w, " (%s)", file)
	}
	fmt.Fprintln(p.w)
}

// HandleEvent renders one runtime event.
func (p *Printer) HandleEvent(event runtime.Event) {
	switch ev := event.(type) {
	case *runtime.TurnStartedEvent:
		p.turn = ev.Turn
		p.printProgress()
	case *runtime.AgentChoiceEvent:
		if len(ev.Progress.New) > 0 {
			p.indicator += ev.Progress.Indicator()
			p.printProgress()
		}
	case *runtime.ToolCallEvent:
		if p.tty {
			p.printProgress(ev.ToolCall.Function.Name)
		}
	case *runtime.WarningEvent:
		p.Warn("%s", ev.Message)
	}
}

func (p *Printer) printProgress(activity ...string) {
	line := strings.TrimRight(fmt.Sprintf("  turn %d %s", p.turn, p.indicator), " ")
	var extra string
	if len(activity) > 0 && activity[0] != "" {
		extra = " · " + activity[0]
	}

	if !p.tty {
		fmt.Fprintln(p.w, line+extra)
		return
	}

	if w := p.width(); w > 0 {
		full := runewidth.Truncate(line+extra, w-1, "…")
		if extra != "" && strings.HasPrefix(full, line) {
			extra = strings.TrimPrefix(full, line)
		} else {
			line, extra = full, ""
		}
	}
	fmt.Fprint(p.w, clearLine+line+p.faint.Sprint(extra))
	p.progressLen = len(line) + len(extra)
}

// endProgress terminates an in-place progress line before other output.
func (p *Printer) endProgress() {
	if p.tty && p.progressLen > 0 {
		fmt.Fprintln(p.w)
		p.progressLen = 0
	}
}

// PrintResult reports the verdict of one file.
func (p *Printer) PrintResult(res *FileResult) {
	p.endProgress()

	switch {
	case res.Err != nil:
		p.red.Fprintf(p.w, "✗ %s: error during %s: %v\n", res.Name(), res.Stage, res.Err)
	case res.Result.Success:
		p.green.Fprintf(p.w, "✓ %s passed", res.Name())
		p.printStats(res.Result)
	case res.Result.Outcome == runtime.OutcomeBoundExceeded:
		p.red.Fprintf(p.w, "✗ %s failed: no verdict after %s", res.Name(), english.Plural(res.Result.TotalSteps, "turn", ""))
		p.printStats(res.Result)
	default:
		p.red.Fprintf(p.w, "✗ %s failed", res.Name())
		p.printStats(res.Result)
	}
}

func (p *Printer) printStats(res *runtime.Result) {
	stats := []string{
		english.Plural(res.TotalSteps, "step", ""),
		english.Plural(res.ToolCalls, "tool call", ""),
		res.Duration.Round(time.Millisecond).String(),
	}
	if tokens := res.Usage.InputTokens + res.Usage.OutputTokens; tokens > 0 {
		stats = append(stats, humanize.Comma(tokens)+" tokens")
	}
	p.faint.Fprintf(p.w, " (%s)\n", strings.Join(stats, ", "))
}

// PrintSummary reports the totals of a batch run.
func (p *Printer) PrintSummary(s Summary) {
	p.endProgress()

	fmt.Fprintln(p.w)
	p.bold.Fprintln(p.w, "Summary")
	fmt.Fprintf(p.w, "  Total:   %d\n", s.Total())
	p.green.Fprintf(p.w, "  Passed:  %d\n", s.Passed)
	p.red.Fprintf(p.w, "  Failed:  %d\n", s.Failed)
	p.yellow.Fprintf(p.w, "  Errored: %d\n", s.Errored)
	for _, res := range s.Results {
		if !res.Passed() {
			p.faint.Fprintf(p.w, "    - %s (%s)\n", res.File, res.Stage)
		}
	}
}

// PrintList prints the tests found by List.
func (p *Printer) PrintList(entries []Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.w, "No tests found.")
		return
	}

	fmt.Fprintf(p.w, "Found %s:\n\n", english.Plural(len(entries), "test", ""))
	for _, e := range entries {
		if e.Err != nil {
			p.red.Fprintf(p.w, "- %s", e.File)
			p.faint.Fprintln(p.w, " (parse error)")
			continue
		}
		p.bold.Fprintf(p.w, "- %s", e.Title)
		p.faint.Fprintf(p.w, " (%s)\n", e.File)
		if e.Description != "" {
			fmt.Fprintf(p.w, "  %s\n", e.Description)
		}
	}
}
