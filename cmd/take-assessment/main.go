package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/gateway"
	"github.com/stemsi/exstem-portal/internal/logger"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/session"
)

// take-assessment runs one assessment session in the terminal against the
// school backend, with the same rules as the portal.
//
//	go run ./cmd/take-assessment -assessment 42
func main() {
	cfg := config.Load()

	var (
		baseURL      string
		assessmentID string
		logLevel     string
	)
	flag.StringVar(&baseURL, "base", cfg.GatewayBaseURL, "School backend API base URL")
	flag.StringVar(&assessmentID, "assessment", "", "Assessment ID to take")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	log := logger.New(os.Stderr, logLevel, "pretty")

	if assessmentID == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := readToken()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:     baseURL,
		Timeout:     cfg.GatewayTimeout,
		Credentials: gateway.StaticCredential(token),
		Logger:      log,
	})

	lines := scanLines(os.Stdin)
	ui := newTerminal(os.Stdout, lines)

	sess := session.New(session.Config{
		AssessmentID: model.ID(assessmentID),
		Gateway:      gw,
		Prompt:       session.ConfirmFunc(ui.confirm),
		Observers:    []session.Observer{ui},
		Logger:       log,
		ReturnPath:   cfg.ReturnPath,
	})
	defer sess.Close()

	fmt.Fprintln(ui.out, "Loading assessment...")
	if err := sess.Load(ctx, nil); err != nil {
		fmt.Fprintf(ui.out, "Could not load assessment: %v\n", err)
		os.Exit(1)
	}

	ui.run(ctx, sess)

	if out, ok := sess.Outcome(); ok {
		if out.Error != "" {
			fmt.Fprintf(ui.out, "Error: %s\n", out.Error)
			os.Exit(1)
		}
		fmt.Fprintf(ui.out, "%s (submission %s)\n", out.Message, out.SubmissionID)
	}
}

// readToken takes the student token from EXSTEM_TOKEN, or asks for it
// without echo when stdin is a terminal.
func readToken() (string, error) {
	if t := strings.TrimSpace(os.Getenv("EXSTEM_TOKEN")); t != "" {
		return t, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("EXSTEM_TOKEN is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Student token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	t := strings.TrimSpace(string(b))
	if t == "" {
		return "", errors.New("empty token")
	}
	return t, nil
}

func scanLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// terminal renders the session and reads commands. It is the session's
// observer and confirmation prompt.
type terminal struct {
	out   io.Writer
	lines <-chan string

	mu       sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

func newTerminal(out io.Writer, lines <-chan string) *terminal {
	return &terminal{out: out, lines: lines, done: make(chan struct{})}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) StateChanged(snap session.Snapshot) {
	switch snap.State {
	case session.StateReadyToStart:
		t.printf("Ready. %d questions, %s. Type 'start' to begin.\n", snap.Total, clock(snap.Duration))
	case session.StateInProgress:
		t.printf("Started. Time remaining %s. Type 'help' for commands.\n", clock(snap.Remaining))
	case session.StateSubmitting:
		if snap.Trigger == session.TriggerTimeout {
			t.printf("Time is up. Submitting your answers...\n")
		} else {
			t.printf("Submitting...\n")
		}
	case session.StateSubmitted, session.StateErrored:
		t.doneOnce.Do(func() { close(t.done) })
	}
}

func (t *terminal) Ticked(_ model.ID, remaining int) {
	if remaining == 60 || remaining == 10 || remaining%300 == 0 && remaining > 0 {
		t.printf("Time remaining %s\n", clock(remaining))
	}
}

func (t *terminal) confirm(ctx context.Context, req session.ConfirmRequest) (bool, error) {
	t.printf("Submit %d of %d answered with %s left? [y/N] ", req.Answered, req.Total, clock(req.Remaining))
	select {
	case line, ok := <-t.lines:
		if !ok {
			return false, nil
		}
		ans := strings.ToLower(strings.TrimSpace(line))
		return ans == "y" || ans == "yes", nil
	case <-t.done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// run reads commands until the session ends, stdin closes or ctx is done.
func (t *terminal) run(ctx context.Context, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case line, ok := <-t.lines:
			if !ok {
				return
			}
			if quit := t.exec(ctx, sess, line); quit {
				return
			}
		}
	}
}

func (t *terminal) exec(ctx context.Context, sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "help":
		t.printf("Commands:\n" +
			"  start                      begin the countdown\n" +
			"  show                       list questions and your answers\n" +
			"  answer <question> <value>  answer a question\n" +
			"  match <question> <row> <letter>  answer one row of a matching question\n" +
			"  submit                     submit your answers\n" +
			"  quit                       leave without submitting\n")
	case "start":
		if err := sess.Start(ctx); err != nil {
			t.printf("Cannot start: %v\n", err)
		}
	case "show":
		t.show(sess)
	case "answer":
		if len(fields) < 3 {
			t.printf("usage: answer <question> <value>\n")
			return false
		}
		key, err := answerKey(sess.Assessment(), fields[1])
		if err != nil {
			t.printf("%v\n", err)
			return false
		}
		t.record(sess, key, restAfter(line, 2))
	case "match":
		if len(fields) != 4 {
			t.printf("usage: match <question> <row> <letter>\n")
			return false
		}
		row, err := strconv.Atoi(fields[2])
		if err != nil || row < 1 {
			t.printf("row must be a number starting at 1\n")
			return false
		}
		t.record(sess, model.PairKey(model.ID(fields[1]), row-1), fields[3])
	case "submit":
		_, err := sess.RequestSubmit(ctx, false)
		t.printf("%s\n", submitMessage(err))
	case "quit", "exit":
		return true
	default:
		t.printf("Unknown command %q. Type 'help'.\n", fields[0])
	}
	return false
}

// submitMessage reports the result of a manual submit. The outcome of a
// submit forced by the countdown is printed by the session itself.
func submitMessage(err error) string {
	switch {
	case err == nil:
		return "Submitted."
	case errors.Is(err, session.ErrSubmitDeclined):
		return "Not submitted. Keep going."
	case errors.Is(err, session.ErrSubmitSuperseded):
		return "Time ran out; your answers were submitted automatically."
	default:
		return fmt.Sprintf("Submit failed: %v", err)
	}
}

// answerKey resolves the key typed after "answer": a question id, or the
// wire form "<question>_<row>" of a matching row counted from 0.
func answerKey(a *model.Assessment, s string) (model.AnswerKey, error) {
	if a == nil {
		return model.AnswerKey{}, errors.New("assessment not loaded")
	}
	if q, ok := a.Question(model.ID(s)); ok {
		if q.Type() == model.QuestionTypeMatching {
			return model.AnswerKey{}, fmt.Errorf("question %s is matching: use %s_<row> or 'match'", s, s)
		}
		return model.QuestionKey(q.ID), nil
	}
	key, err := model.ParseAnswerKey(s, true)
	if err != nil {
		return model.AnswerKey{}, fmt.Errorf("unknown question %q", s)
	}
	return key, nil
}

func (t *terminal) record(sess *session.Session, key model.AnswerKey, value string) {
	if err := sess.RecordAnswer(key, value); err != nil {
		t.printf("Not saved: %v\n", err)
		return
	}
	snap := sess.Snapshot()
	t.printf("Saved. %d of %d answered.\n", snap.Answered, snap.Total)
}

func (t *terminal) show(sess *session.Session) {
	a := sess.Assessment()
	if a == nil {
		t.printf("Assessment not loaded.\n")
		return
	}
	answers := sess.Answers()

	var b strings.Builder
	title := a.Title
	if a.IsFinalExam() {
		title = "[FINAL EXAM] " + title
	}
	fmt.Fprintf(&b, "%s (%s)\n", title, clock(sess.Snapshot().Remaining))
	for _, q := range a.Questions {
		fmt.Fprintf(&b, "\n%d. [%s] %s  (%s marks)\n", q.Position, q.ID, q.Text, q.Marks.String())
		switch v := q.Variant.(type) {
		case model.MultipleChoice:
			for _, o := range v.Options {
				fmt.Fprintf(&b, "   %s) %s  [id %s]\n", o.Label, o.Text, o.ID)
			}
		case model.TrueFalse:
			fmt.Fprintf(&b, "   %s / %s\n", model.AnswerTrue, model.AnswerFalse)
		case model.Matching:
			for i, p := range v.Pairs {
				fmt.Fprintf(&b, "   %d. %s", i+1, p.Left)
				if ans, ok := answers[model.PairKey(q.ID, i).String()]; ok {
					fmt.Fprintf(&b, "  -> %s", ans)
				}
				b.WriteString("\n")
			}
			for i, p := range v.Pairs {
				fmt.Fprintf(&b, "   %c. %s\n", 'A'+i, p.Right)
			}
			continue
		}
		if ans, ok := answers[model.QuestionKey(q.ID).String()]; ok {
			fmt.Fprintf(&b, "   answer: %s\n", ans)
		}
	}

	fmt.Fprintf(&b, "\n%d answer(s) recorded.\n", len(answers))
	t.printf("%s", b.String())
}

// restAfter returns line without its first n fields, keeping inner spacing
// so essay answers survive intact.
func restAfter(line string, n int) string {
	s := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		j := strings.IndexAny(s, " \t")
		if j < 0 {
			return ""
		}
		s = strings.TrimLeft(s[j:], " \t")
	}
	return s
}

func clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
