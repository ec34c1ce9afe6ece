package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external tool the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Hint is appended to the detail when the binary is missing.
	Hint     string
	Optional bool
}

// Status reports whether a requirement resolved on this host. Command holds
// the absolute path when the lookup succeeded.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, lookup(req))
	}
	return results
}

func lookup(req Requirement) Status {
	command := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     command,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if command == "" {
		status.Detail = withHint("command not configured", req.Hint)
		return status
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		status.Detail = withHint(fmt.Sprintf("binary %q not found", command), req.Hint)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

func withHint(detail, hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return detail
	}
	return detail + " (" + hint + ")"
}
