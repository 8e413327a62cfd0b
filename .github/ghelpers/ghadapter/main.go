package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
)

// ghadapter runs one of the JSON-printing tools (bin/diff, bin/verify,
// bin/capture) and exposes the top-level fields as step outputs. The tool's
// exit code is passed through, so a bin/diff "similar" result still fails the
// step.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <command> [args...]\n", os.Args[0])
		os.Exit(2)
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	exitCode := 0
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "failed to run %s: %v\n", os.Args[1], err)
			os.Exit(2)
		}
		exitCode = exitErr.ExitCode()
	}
	_, _ = os.Stdout.Write(output)

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" && len(output) > 0 {
		if err := appendOutputs(githubOutput, output); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write step outputs: %v\n", err)
			if exitCode == 0 {
				exitCode = 2
			}
		}
	}

	os.Exit(exitCode)
}

func appendOutputs(path string, output []byte) error {
	var result map[string]json.RawMessage
	if err := json.Unmarshal(output, &result); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return writeOutputs(f, result)
}

// writeOutputs prints scalars bare and everything else as compact JSON.
func writeOutputs(w io.Writer, result map[string]json.RawMessage) error {
	keys := make([]string, 0, len(result))
	for key := range result {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := result[key]
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		switch v := value.(type) {
		case string:
			if _, err := fmt.Fprintf(w, "%s=%s\n", key, v); err != nil {
				return err
			}
		case map[string]any, []any:
			compact, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s=%s\n", key, compact); err != nil {
				return err
			}
		default:
			if _, err := fmt.Fprintf(w, "%s=%s\n", key, raw); err != nil {
				return err
			}
		}
	}
	return nil
}
