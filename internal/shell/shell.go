// Package shell is an interactive terminal front end for the note controller.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/starford/quill/internal/noteservice"
	"github.com/starford/quill/internal/ui"
)

// Prompter reads one line of input. *liner.State implements it.
type Prompter interface {
	Prompt(prompt string) (string, error)
	PromptWithSuggestion(prompt, text string, pos int) (string, error)
}

// Shell is the interactive command loop.
type Shell struct {
	ctrl *ui.Controller
	in   Prompter
	out  io.Writer
}

// New creates a Shell reading from in and writing to out.
func New(ctrl *ui.Controller, in Prompter, out io.Writer) *Shell {
	return &Shell{ctrl: ctrl, in: in, out: out}
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".quill_history")
}

// Run starts a liner-backed shell on the terminal.
func Run(ctx context.Context, ctrl *ui.Controller) error {
	l := liner.NewLiner()
	defer l.Close()

	l.SetCtrlCAborts(true)
	l.SetCompleter(completer)

	if f, err := os.Open(historyFile()); err == nil {
		l.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				l.WriteHistory(f)
				f.Close()
			}
		}
	}()

	return New(ctrl, historyRecorder{l}, os.Stdout).Loop(ctx)
}

// historyRecorder appends top-level commands to the liner history.
type historyRecorder struct {
	*liner.State
}

func (h historyRecorder) Prompt(prompt string) (string, error) {
	line, err := h.State.Prompt(prompt)
	if err == nil && prompt == mainPrompt && strings.TrimSpace(line) != "" {
		h.State.AppendHistory(line)
	}
	return line, err
}

var commands = []string{"list", "new", "edit", "delete", "help", "quit"}

func completer(line string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

const mainPrompt = "notes> "

func aborted(err error) bool {
	return errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF)
}

// Loop reads commands until quit, end of input or ctx is done.
func (s *Shell) Loop(ctx context.Context) error {
	fmt.Fprintln(s.out, "Type 'help' for available commands.")
	s.render(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := s.in.Prompt(mainPrompt)
		if err != nil {
			if aborted(err) {
				fmt.Fprintln(s.out, "\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Fprintln(s.out, "Bye!")
			return nil
		case "help", "?":
			s.printHelp()
		case "list", "ls", "l":
			if err := s.ctrl.Reload(ctx); err != nil {
				fmt.Fprintf(s.out, "Error: %v\n", err)
			}
			s.render(ctx)
		case "new", "n":
			if err := s.ctrl.OpenCreate(ctx); err != nil {
				fmt.Fprintf(s.out, "Error: %v\n", err)
				continue
			}
			s.editModal(ctx)
		case "edit", "e":
			if len(args) != 1 {
				fmt.Fprintln(s.out, "Usage: edit <id>")
				continue
			}
			if err := s.ctrl.OpenEdit(ctx, args[0]); err != nil {
				fmt.Fprintf(s.out, "No note with id %s\n", args[0])
				continue
			}
			s.editModal(ctx)
		case "delete", "del", "rm":
			if len(args) != 1 {
				fmt.Fprintln(s.out, "Usage: delete <id>")
				continue
			}
			s.deleteNote(ctx, args[0])
		default:
			fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// editModal prompts for the open modal's fields until the note is saved or
// the user aborts a prompt.
func (s *Shell) editModal(ctx context.Context) {
	for {
		v, err := s.ctrl.View(ctx)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		if v.Prompt != "" {
			fmt.Fprintln(s.out, v.Prompt)
		}

		title, err := s.in.PromptWithSuggestion("Title: ", v.Title, -1)
		if err != nil {
			s.cancel(ctx)
			return
		}
		content, err := s.in.PromptWithSuggestion("Content: ", v.Content, -1)
		if err != nil {
			s.cancel(ctx)
			return
		}

		err = s.ctrl.Save(ctx, title, content)
		switch {
		case err == nil:
			fmt.Fprintln(s.out, "Saved.")
			s.render(ctx)
			return
		case noteservice.IsInvalid(err):
			continue
		default:
			fmt.Fprintf(s.out, "Error: %v\n", err)
			s.cancel(ctx)
			return
		}
	}
}

func (s *Shell) cancel(ctx context.Context) {
	_ = s.ctrl.Cancel(ctx)
	fmt.Fprintln(s.out, "Cancelled.")
}

func (s *Shell) deleteNote(ctx context.Context, id string) {
	if err := s.ctrl.RequestDelete(ctx, id); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	answer, err := s.in.Prompt(ui.PromptConfirmDelete + " (yes/no): ")
	answer = strings.ToLower(strings.TrimSpace(answer))
	if err != nil || (answer != "yes" && answer != "y") {
		_ = s.ctrl.DismissDelete(ctx)
		fmt.Fprintln(s.out, "Cancelled.")
		return
	}
	if err := s.ctrl.ConfirmDelete(ctx); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Deleted.")
	s.render(ctx)
}

func (s *Shell) render(ctx context.Context) {
	v, err := s.ctrl.View(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if v.Empty() {
		fmt.Fprintln(s.out, "No notes yet. Type 'new' to get started!")
		return
	}
	for _, n := range v.Notes {
		fmt.Fprintf(s.out, "[%s] %s  (%s)\n", n.ID, n.Title, ui.FormatTimestamp(n.Timestamp))
		for _, line := range strings.Split(n.Content, "\n") {
			fmt.Fprintf(s.out, "    %s\n", line)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  list              show all notes, newest first
  new               create a note (Ctrl+C at a prompt cancels)
  edit <id>         edit a note
  delete <id>       delete a note after confirmation
  help              show this help
  quit              leave the shell
`)
}
