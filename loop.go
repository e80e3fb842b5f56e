package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"script_video_assistant/generator"
)

const exitWord = "exit"

type promptRunner interface {
	Run(ctx context.Context, prompt string) (generator.Result, error)
}

// runLoop submits prompt, reports the outcome and asks for the next one
// until the operator types exit or input ends. A prompt that keeps failing
// is reported and the operator is asked again, so exit is always reachable.
func runLoop(ctx context.Context, sess promptRunner, prompt string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		res, err := sess.Run(ctx, prompt)
		switch {
		case err == nil:
			fmt.Fprintf(out, "[R] Model response:\n%s\n", res.Script.Body)
			fmt.Fprintf(out, "[+] Script saved at: %s\n", res.ScriptPath)
			fmt.Fprintf(out, "[+] Video generated at: %s\n", res.VideoPath)
		case errors.Is(err, generator.ErrRetriesExhausted):
			fmt.Fprintf(out, "[E] %v\n", err)
		default:
			return err
		}

		next, ok := readPrompt(scanner, out)
		if !ok {
			return scanner.Err()
		}
		if strings.EqualFold(next, exitWord) {
			return nil
		}
		prompt = next
	}
}

// readPrompt asks until a non-empty line arrives. ok is false at end of input.
func readPrompt(scanner *bufio.Scanner, out io.Writer) (string, bool) {
	for {
		fmt.Fprintf(out, "\n[>] Enter the next prompt (or '%s' to quit): ", exitWord)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return "", false
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, true
		}
	}
}
