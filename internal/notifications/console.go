package notifications

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console redraws a single status line on an interactive terminal.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out, which should be a terminal.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Progress(_ context.Context, update Update) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := strings.TrimSpace(update.Title)
	if body := strings.TrimSpace(update.Body); body != "" {
		text += ": " + body
	}
	if update.Percent >= 0 {
		text = fmt.Sprintf("[%3d%%] %s", update.Percent, text)
	}
	end := ""
	if update.Final {
		end = "\n"
	}
	if _, err := fmt.Fprintf(c.out, "\r\033[K%s%s", text, end); err != nil {
		return update.Replace, err
	}
	return "console", nil
}
