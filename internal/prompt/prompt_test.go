package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out), out
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
	}{
		{"Explicit Yes", "y\n", false, true},
		{"Explicit No", "n\n", true, false},
		{"Full Word", "yes\n", false, true},
		{"Uppercase", "Y\n", false, true},
		{"Empty Takes Default No", "\n", false, false},
		{"Empty Takes Default Yes", "\n", true, true},
		{"Garbage Then Valid", "maybe\nwhat\ny\n", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.Confirm("Continue?", tt.defaultYes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Attempts Exhausted", func(t *testing.T) {
		p, _ := newTestPrompter("a\nb\nc\nd\ne\nf\n")
		_, err := p.Confirm("Continue?", false)
		assert.ErrorIs(t, err, ErrTooManyAttempts)
	})
}

func TestNumber(t *testing.T) {
	t.Run("Valid Input", func(t *testing.T) {
		p, _ := newTestPrompter("7\n")
		got, err := p.Number("New threshold", 1, 100, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})

	t.Run("Empty Takes Default", func(t *testing.T) {
		p, _ := newTestPrompter("\n")
		got, err := p.Number("New threshold", 1, 100, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, got)
	})

	t.Run("Out Of Range Then Valid", func(t *testing.T) {
		p, out := newTestPrompter("0\n200\n50\n")
		got, err := p.Number("New threshold", 1, 100, 3)
		require.NoError(t, err)
		assert.Equal(t, 50, got)
		assert.Contains(t, out.String(), "between 1 and 100")
	})

	t.Run("Non-Numeric Then Valid", func(t *testing.T) {
		p, _ := newTestPrompter("lots\n5\n")
		got, err := p.Number("New threshold", 1, 100, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, got)
	})
}

func TestSelectFolder(t *testing.T) {
	options := []string{"foxLora", "styleB"}

	t.Run("Pick Listed Option", func(t *testing.T) {
		p, out := newTestPrompter("2\n")
		choice, err := p.SelectFolder("Assign a folder:", options)
		require.NoError(t, err)
		assert.Equal(t, FolderSelected, choice.Kind)
		assert.Equal(t, "styleB", choice.FolderName)
		assert.Contains(t, out.String(), "1) foxLora")
	})

	t.Run("Fallback", func(t *testing.T) {
		p, _ := newTestPrompter("u\n")
		choice, err := p.SelectFolder("Assign a folder:", options)
		require.NoError(t, err)
		assert.Equal(t, FolderUseFallback, choice.Kind)
		assert.Empty(t, choice.FolderName)
	})

	t.Run("New Folder Name", func(t *testing.T) {
		p, _ := newTestPrompter("n\nFoxes\n")
		choice, err := p.SelectFolder("Assign a folder:", options)
		require.NoError(t, err)
		assert.Equal(t, FolderSelected, choice.Kind)
		assert.Equal(t, "Foxes", choice.FolderName)
	})

	t.Run("Empty New Name Reprompts", func(t *testing.T) {
		p, _ := newTestPrompter("n\n\nFoxes\n")
		choice, err := p.SelectFolder("Assign a folder:", options)
		require.NoError(t, err)
		assert.Equal(t, "Foxes", choice.FolderName)
	})

	t.Run("Invalid Index Reprompts", func(t *testing.T) {
		p, _ := newTestPrompter("9\n1\n")
		choice, err := p.SelectFolder("Assign a folder:", options)
		require.NoError(t, err)
		assert.Equal(t, "foxLora", choice.FolderName)
	})
}
