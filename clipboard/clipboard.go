package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrNothingToCopy = errors.New("nothing to copy")

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	if text == "" {
		return ErrNothingToCopy
	}
	return cb.WriteAll(text)
}

// Supported is false when no clipboard helper (xclip, xsel, wl-copy,
// pbcopy) was found.
func Supported() bool { return !cb.Unsupported }

// FormatAnswer renders a question and its answer for pasting elsewhere.
func FormatAnswer(question, answer string) string {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	switch {
	case answer == "":
		return ""
	case question == "":
		return answer
	}
	return "Q: " + question + "\nA: " + answer + "\n"
}

// CopyAnswer puts the formatted answer on the clipboard.
func CopyAnswer(question, answer string) error {
	return Copy(FormatAnswer(question, answer))
}
