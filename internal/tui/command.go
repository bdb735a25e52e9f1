package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	cmd.Name = canonical(cmd.Name)
	return cmd
}

var aliases = map[string]string{
	"h":  "help",
	"q":  "quit",
	"s":  "search",
	"r":  "rate",
	"fb": "feedback",
	"o":  "older",
}

func canonical(name string) string {
	if full, ok := aliases[name]; ok {
		return full
	}
	return name
}

// ParseRating parses a 1..5 star value.
func ParseRating(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 5 {
		return 0, fmt.Errorf("rating must be 1-5, got %q", s)
	}
	return n, nil
}
