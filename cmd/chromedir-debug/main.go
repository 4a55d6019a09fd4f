// Package main provides the chromedir-debug binary: an interactive REPL
// that drives one DebugController per run. The engine's main loop blocks
// on DebugController.Gate from inside its own goroutine rather than
// stepping synchronously in the caller, so the REPL here starts the run
// in the background and talks to it only through the controller and the
// event stream — there is no shared state to step directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chzyer/readline"

	"github.com/ormasoftchile/chromedir/internal/debugctl"
	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/engine"
	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/logging"
	"github.com/ormasoftchile/chromedir/internal/model"
	"github.com/ormasoftchile/chromedir/internal/storage"
	"github.com/ormasoftchile/chromedir/internal/tui"
)

func main() {
	storeDir := flag.String("store", ".chromedir", "Directory holding test definitions and run records")
	testID := flag.String("test", "", "Id of the test to debug")
	useTUI := flag.Bool("tui", false, "Render a live step-event pane instead of the REPL (runs to completion, undebounced)")
	flag.Parse()

	if *testID == "" {
		fmt.Fprintln(os.Stderr, "usage: chromedir-debug --test <testId> [--store dir] [--tui]")
		os.Exit(1)
	}

	var err error
	if *useTUI {
		err = runTUI(*storeDir, *testID)
	} else {
		err = run(*storeDir, *testID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI runs testID to completion (no pausing) while rendering a live
// Bubble Tea pane of its step events, ending on a glamour-rendered summary.
func runTUI(storeDir, testID string) error {
	ctx := logging.Default(context.Background())

	store, err := storage.New(storeDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	def, err := store.GetTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}
	if def == nil {
		return fmt.Errorf("test %q not found in %s", testID, storeDir)
	}

	eventCh := make(chan events.Event, 64)
	doneCh := make(chan *model.TestResult, 1)

	emitter := events.New(func(evt events.Event) {
		select {
		case eventCh <- evt:
		default:
		}
	})

	go func() {
		result := engine.Run(ctx, def, engine.Config{
			Driver:  driver.NewFake(),
			Loader:  store,
			Events:  emitter,
			BaseDir: filepath.Join(storeDir, "tests"),
		})
		store.SaveRun(ctx, testID, result)
		doneCh <- result
	}()

	p := tea.NewProgram(tui.NewModel(fmt.Sprintf("chromedir — %s", testID), eventCh, doneCh))
	_, err = p.Run()
	return err
}

// session tracks the one run this REPL instance is attached to.
type session struct {
	mu        sync.Mutex
	lastIndex int
	lastTotal int
	lastLabel string
	history   []string
	done      bool
	result    *model.TestResult
}

func run(storeDir, testID string) error {
	ctx := logging.Default(context.Background())

	store, err := storage.New(storeDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	def, err := store.GetTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}
	if def == nil {
		return fmt.Errorf("test %q not found in %s", testID, storeDir)
	}

	sess := &session{lastTotal: len(def.Steps)}

	debug := debugctl.New(debugctl.Config{
		Debug: true,
		OnPause: func(currentIndex, total int) {
			sess.mu.Lock()
			sess.lastIndex, sess.lastTotal = currentIndex, total
			sess.mu.Unlock()
		},
	})

	emitter := events.New(func(evt events.Event) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		switch evt.Type {
		case events.StepStart, events.StepPass, events.StepFail:
			sess.lastLabel = evt.Label
			sess.history = append(sess.history, fmt.Sprintf("%s step[%d] %s", evt.Type, evt.StepIndex, evt.Label))
		}
	})

	done := make(chan *model.TestResult, 1)
	go func() {
		result := engine.Run(ctx, def, engine.Config{
			Driver:  driver.NewFake(),
			Loader:  store,
			Debug:   debug,
			Events:  emitter,
			BaseDir: filepath.Join(storeDir, "tests"),
		})
		store.SaveRun(ctx, testID, result)
		done <- result
	}()

	rl, err := newREPL(len(def.Steps))
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("chromedir debugger — %s (%d steps)\n", testID, len(def.Steps))
	fmt.Println("Type 'help' for available commands, 'next' to execute the next step.")

	for {
		select {
		case result := <-done:
			sess.mu.Lock()
			sess.done = true
			sess.result = result
			sess.mu.Unlock()
			fmt.Printf("\nrun complete: %s\n", result.Status)
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				debug.Stop()
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "next", "n":
			debug.Step()
		case "continue", "c":
			debug.Continue()
		case "run-to":
			if len(parts) < 2 {
				fmt.Println("usage: run-to <stepIndex>")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("run-to requires an integer step index")
				continue
			}
			debug.RunTo(n)
		case "stop":
			debug.Stop()
		case "print":
			printState(sess, parts)
		case "dump":
			dumpState(sess)
		case "help", "?":
			printHelp()
		case "quit", "q":
			debug.Stop()
			return nil
		default:
			fmt.Printf("unknown command %q — type 'help'\n", parts[0])
		}
	}
}

func newREPL(totalSteps int) (*readline.Instance, error) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("next"),
		readline.PcItem("continue"),
		readline.PcItem("run-to"),
		readline.PcItem("stop"),
		readline.PcItem("print",
			readline.PcItem("vars"),
			readline.PcItem("captures"),
		),
		readline.PcItem("dump"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
	return readline.NewEx(&readline.Config{
		Prompt:          "chromedir> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
}

func printState(sess *session, parts []string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(parts) < 2 {
		fmt.Println("usage: print vars|captures")
		return
	}
	switch parts[1] {
	case "vars":
		fmt.Printf("step %d/%d: %s\n", sess.lastIndex, sess.lastTotal, sess.lastLabel)
	case "captures":
		if len(sess.history) == 0 {
			fmt.Println("(no captures yet)")
			return
		}
		fmt.Println(sess.history[len(sess.history)-1])
	default:
		fmt.Println("usage: print vars|captures")
	}
}

func dumpState(sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	fmt.Printf("step %d/%d, label=%q, done=%v\n", sess.lastIndex, sess.lastTotal, sess.lastLabel, sess.done)
	for _, line := range sess.history {
		fmt.Println("  " + line)
	}
}

func printHelp() {
	fmt.Println(`commands:
  next, n             execute the next step
  continue, c         run to completion or the next unconditional pause
  run-to <n>          run until step index n, then pause
  stop                abort the run
  print vars          show the current step position
  print captures      show the most recent event
  dump                show full event history
  quit, q             stop the run and exit`)
}
