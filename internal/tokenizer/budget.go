package tokenizer

import (
	"errors"
	"strings"
)

const budgetLineSeparator = "\n"

var errNilCounter = errors.New("nil tokenizer counter")

// TruncateToBudget keeps the longest line prefix of text whose token count fits budget.
// When not even the first line fits, it keeps the longest rune prefix of that line.
// The boolean reports whether anything was dropped. A non-positive budget disables truncation.
func TruncateToBudget(counter Counter, text string, budget int) (string, bool, error) {
	if budget <= 0 {
		return text, false, nil
	}
	if counter == nil {
		return "", false, errNilCounter
	}
	total, countErr := counter.CountString(text)
	if countErr != nil {
		return "", false, countErr
	}
	if total <= budget {
		return text, false, nil
	}

	lines := strings.Split(text, budgetLineSeparator)
	low, high := 0, len(lines)-1
	for low < high {
		middle := (low + high + 1) / 2
		tokens, err := counter.CountString(strings.Join(lines[:middle], budgetLineSeparator))
		if err != nil {
			return "", false, err
		}
		if tokens <= budget {
			low = middle
		} else {
			high = middle - 1
		}
	}
	if low == 0 {
		return truncateLine(counter, lines[0], budget)
	}
	return strings.Join(lines[:low], budgetLineSeparator), true, nil
}

// truncateLine keeps the longest rune prefix of line that fits budget.
func truncateLine(counter Counter, line string, budget int) (string, bool, error) {
	runes := []rune(line)
	low, high := 0, len(runes)
	for low < high {
		middle := (low + high + 1) / 2
		tokens, err := counter.CountString(string(runes[:middle]))
		if err != nil {
			return "", false, err
		}
		if tokens <= budget {
			low = middle
		} else {
			high = middle - 1
		}
	}
	return string(runes[:low]), true, nil
}
