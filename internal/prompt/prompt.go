// Package prompt implements the interactive operator surface: confirmations,
// bounded numeric input and folder selection. All reads come from a single
// buffered reader so tests can drive it with a strings.Reader.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxAttempts bounds every re-prompt loop. Invalid input re-prompts until a
// validator accepts it or the budget runs out; there is no recursion.
const maxAttempts = 5

// ErrTooManyAttempts is returned when the operator fails to produce valid
// input within the attempt budget.
var ErrTooManyAttempts = errors.New("too many invalid input attempts")

// FolderChoiceKind tags the outcome of a folder selection.
type FolderChoiceKind int

const (
	// FolderSelected means the operator picked or named a folder.
	FolderSelected FolderChoiceKind = iota
	// FolderUseFallback means the operator explicitly opted into the
	// uncategorized fallback folder.
	FolderUseFallback
)

// FolderChoice is the tagged result of SelectFolder. The fallback path is a
// distinct kind rather than an empty folder name, so callers cannot confuse
// it with a lookup miss.
type FolderChoice struct {
	Kind       FolderChoiceKind
	FolderName string
}

// Prompter reads operator input line by line.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// New creates a Prompter reading from in and writing prompts to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. An empty answer takes the default.
func (p *Prompter) Confirm(message string, defaultYes bool) (bool, error) {
	suffix := "(y/N)"
	if defaultYes {
		suffix = "(Y/n)"
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s %s: ", message, suffix)

		answer, err := p.readLine()
		if err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}

		switch strings.ToLower(answer) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
	return false, ErrTooManyAttempts
}

// Number asks for an integer in [min, max]. An empty answer takes the default.
func (p *Prompter) Number(message string, min, max, defaultValue int) (int, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s [%d-%d, default %d]: ", message, min, max, defaultValue)

		answer, err := p.readLine()
		if err != nil {
			return 0, fmt.Errorf("failed to read number: %w", err)
		}

		if answer == "" {
			return defaultValue, nil
		}

		value, err := strconv.Atoi(answer)
		if err != nil || value < min || value > max {
			fmt.Fprintf(p.out, "Please enter a number between %d and %d.\n", min, max)
			continue
		}
		return value, nil
	}
	return 0, ErrTooManyAttempts
}

// SelectFolder presents the category names of an item and asks the operator
// to assign a folder: pick one of the listed names, type a new folder name,
// or opt into the uncategorized fallback.
func (p *Prompter) SelectFolder(message string, options []string) (FolderChoice, error) {
	fmt.Fprintln(p.out, message)
	for i, option := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, option)
	}
	fmt.Fprintln(p.out, "  n) type a new folder name")
	fmt.Fprintln(p.out, "  u) use the uncategorized folder")

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(p.out, "Choice: ")

		answer, err := p.readLine()
		if err != nil {
			return FolderChoice{}, fmt.Errorf("failed to read folder choice: %w", err)
		}

		switch strings.ToLower(answer) {
		case "u":
			return FolderChoice{Kind: FolderUseFallback}, nil
		case "n":
			name, err := p.newFolderName()
			if err != nil {
				return FolderChoice{}, err
			}
			return FolderChoice{Kind: FolderSelected, FolderName: name}, nil
		}

		if index, err := strconv.Atoi(answer); err == nil && index >= 1 && index <= len(options) {
			return FolderChoice{Kind: FolderSelected, FolderName: options[index-1]}, nil
		}
		fmt.Fprintf(p.out, "Please enter 1-%d, n or u.\n", len(options))
	}
	return FolderChoice{}, ErrTooManyAttempts
}

func (p *Prompter) newFolderName() (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(p.out, "New folder name: ")

		name, err := p.readLine()
		if err != nil {
			return "", fmt.Errorf("failed to read folder name: %w", err)
		}
		if name != "" {
			return name, nil
		}
		fmt.Fprintln(p.out, "Folder name cannot be empty.")
	}
	return "", ErrTooManyAttempts
}
