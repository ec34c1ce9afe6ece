package notifications

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const appName = "walker-yt"

// Desktop sends updates through notify-send.
type Desktop struct {
	binary string
}

// NewDesktop targets the given notify-send binary.
func NewDesktop(binary string) *Desktop {
	if strings.TrimSpace(binary) == "" {
		binary = "notify-send"
	}
	return &Desktop{binary: binary}
}

// Args returns the notify-send arguments for update.
func (d *Desktop) Args(update Update) []string {
	urgency := update.Urgency
	if urgency == "" {
		urgency = UrgencyNormal
	}
	args := []string{"-a", appName, "-u", string(urgency), "-p"}
	if update.Replace != "" {
		args = append(args, "-r", string(update.Replace))
	}
	if update.Percent >= 0 && update.Percent <= 100 {
		args = append(args,
			"-h", "int:value:"+strconv.Itoa(update.Percent),
			"-h", "string:x-canonical-private-synchronous:"+appName,
		)
	}
	title := update.Title
	if title == "" {
		title = appName
	}
	args = append(args, "--", title)
	if update.Body != "" {
		args = append(args, update.Body)
	}
	return args
}

func (d *Desktop) Progress(ctx context.Context, update Update) (Token, error) {
	cmd := exec.CommandContext(ctx, d.binary, d.Args(update)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return update.Replace, fmt.Errorf("notify-send: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	id := strings.TrimSpace(stdout.String())
	if _, err := strconv.ParseUint(id, 10, 32); err != nil {
		return update.Replace, nil
	}
	return Token(id), nil
}
