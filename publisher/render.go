package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Presentation is the fixed look of every rendered video.
type Presentation struct {
	BackgroundImage string `json:"background_image"`
	Font            string `json:"font"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FPS             int    `json:"fps"`
	CharsPerSecond  int    `json:"chars_per_second"`
	Margins         int    `json:"margins"`
	AudioPath       string `json:"audio_path"`
}

// RenderJob is everything the renderer needs to produce one video.
type RenderJob struct {
	Text       string `json:"text"`
	OutputPath string `json:"output_path"`
	Presentation
}

// Renderer turns a script's text into a narrated video at job.OutputPath.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) error
}

// CommandRenderer runs an external program per job and writes the job to
// its stdin as JSON. A non-zero exit is an error carrying the program's stderr.
type CommandRenderer struct {
	Command []string
	Dir     string
}

func NewCommandRenderer(command []string) (*CommandRenderer, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("render command is required")
	}
	return &CommandRenderer{Command: command}, nil
}

func (r *CommandRenderer) Render(ctx context.Context, job RenderJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", r.Command[0], ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", r.Command[0], err, msg)
		}
		return fmt.Errorf("%s: %w", r.Command[0], err)
	}
	return nil
}

// PresentationFromConfig extracts the presentation settings.
func PresentationFromConfig(cfg RenderConfig) Presentation {
	return Presentation{
		BackgroundImage: cfg.BackgroundImage,
		Font:            cfg.Font,
		Width:           cfg.Width,
		Height:          cfg.Height,
		FPS:             cfg.FPS,
		CharsPerSecond:  cfg.CharsPerSecond,
		Margins:         cfg.Margins,
		AudioPath:       cfg.AudioPath,
	}
}
