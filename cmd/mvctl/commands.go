// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ManuGH/mvgen/internal/client"
	"github.com/ManuGH/mvgen/internal/config"
	mvlog "github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/sse"
)

const (
	envServer   = "MVGEN_SERVER"
	cancelGrace = 10 * time.Second
)

// common holds the flags every command shares.
type common struct {
	server  string
	verbose bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet("mvctl "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &common{}
	fs.StringVar(&c.server, "server", config.ParseString(envServer, "http://localhost:8080"), "mvgend base URL")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	return fs, c
}

func (c *common) client(stderr io.Writer) *client.Client {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	mvlog.Configure(mvlog.Config{Level: level, Output: stderr, Service: "mvctl", Version: version})
	return client.New(c.server, client.Options{})
}

func fail(stderr io.Writer, err error) int {
	var apiErr *client.APIError
	var streamErr *client.StreamError
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintf(stderr, "Error: %s (HTTP %d)\n", apiErr.Message, apiErr.Status)
		if apiErr.Details != "" {
			fmt.Fprintf(stderr, "  %s\n", apiErr.Details)
		}
	case errors.As(err, &streamErr):
		fmt.Fprintf(stderr, "Error: %s\n", streamErr.Message)
		if streamErr.Details != "" {
			fmt.Fprintf(stderr, "  %s\n", streamErr.Details)
		}
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readLyrics(file, inline string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if file == "" {
		return "", errors.New("-lyrics or -lyrics-file is required")
	}
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		// #nosec G304 -- the operator names the lyrics file
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read lyrics: %w", err)
	}
	return string(data), nil
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("generate", stderr)
	file := fs.String("lyrics-file", "", "lyrics file (- for stdin)")
	inline := fs.String("lyrics", "", "lyrics text")
	scenes := fs.Int("scenes", 0, "scene count (8, 12, 20, 25 or 32; 0 = server default)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	lyrics, err := readLyrics(*file, *inline)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	res, err := c.client(stderr).Generate(ctx, lyrics, *scenes)
	if err != nil {
		return fail(stderr, err)
	}
	if res.Degraded {
		fmt.Fprintln(stderr, "Warning: provider unavailable, storyboard built from fallback template")
	}
	printJSON(stdout, res)
	return 0
}

func runStoryboard(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("storyboard", stderr)
	sessionID := fs.String("session", "", "session id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionID == "" {
		fmt.Fprintln(stderr, "Error: -session is required")
		return 2
	}
	sb, err := c.client(stderr).Storyboard(ctx, *sessionID)
	if err != nil {
		return fail(stderr, err)
	}
	printJSON(stdout, sb)
	return 0
}

func runProtagonists(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("protagonists", stderr)
	sessionID := fs.String("session", "", "session id")
	out := fs.String("out", "", "directory to write the candidate images to")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionID == "" {
		fmt.Fprintln(stderr, "Error: -session is required")
		return 2
	}

	candidates, err := c.client(stderr).Protagonists(ctx, *sessionID)
	if err != nil {
		return fail(stderr, err)
	}
	urls := make([]string, len(candidates))
	for i, cand := range candidates {
		urls[i] = cand.URL
		fmt.Fprintf(stdout, "%d  %s  %s\n", i+1, cand.ID, abbreviate(cand.URL))
	}
	if *out != "" {
		written, err := client.ExportImages(*out, urls)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "wrote %d candidate images to %s\n", len(written), *out)
	}
	return 0
}

func runRender(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("render", stderr)
	sessionID := fs.String("session", "", "session id")
	reference := fs.String("reference", "", "protagonist image URL (http(s) or data:); empty renders without one")
	aspect := fs.String("aspect", "", "aspect ratio: 16:9, 9:16 or 1:1")
	out := fs.String("out", "", "directory to write scene images to")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionID == "" {
		fmt.Fprintln(stderr, "Error: -session is required")
		return 2
	}

	api := c.client(stderr)
	stream, err := api.GenerateScenes(ctx, client.ScenesRequest{
		SessionID:           *sessionID,
		ProtagonistImageURL: *reference,
		NoProtagonist:       *reference == "",
		AspectRatio:         *aspect,
	})
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stderr, "job %s started\n", stream.JobID)

	outcome, err := client.NewConsumer(nil).Consume(ctx, stream.Body, progressPrinter(stdout))
	if outcome.Cancelled {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelGrace)
		defer cancel()
		if _, cerr := api.CancelJob(cctx, stream.JobID); cerr != nil {
			fmt.Fprintf(stderr, "Warning: server-side cancel failed: %v\n", cerr)
		}
		fmt.Fprintf(stderr, "cancelled after %d scenes\n", len(outcome.Images))
	}
	if code := export(*out, outcome.Images, stdout, stderr); code != 0 {
		return code
	}
	if err != nil {
		return fail(stderr, err)
	}
	if outcome.Cancelled {
		return 130
	}
	return 0
}

func runCancel(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("cancel", stderr)
	jobID := fs.String("job", "", "job id (printed by render)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *jobID == "" {
		fmt.Fprintln(stderr, "Error: -job is required")
		return 2
	}
	running, err := c.client(stderr).CancelJob(ctx, *jobID)
	if err != nil {
		return fail(stderr, err)
	}
	if running {
		fmt.Fprintf(stdout, "job %s cancelled\n", *jobID)
	} else {
		fmt.Fprintf(stdout, "job %s was not running\n", *jobID)
	}
	return 0
}

// runAll drives lyrics to exported scenes in one go.
func runAll(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("run", stderr)
	file := fs.String("lyrics-file", "", "lyrics file (- for stdin)")
	inline := fs.String("lyrics", "", "lyrics text")
	scenes := fs.Int("scenes", 0, "scene count (0 = server default)")
	pick := fs.Int("pick", 1, "protagonist candidate to use (1-4, 0 = none)")
	aspect := fs.String("aspect", "", "aspect ratio: 16:9, 9:16 or 1:1")
	out := fs.String("out", "", "directory to write scene images to")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	lyrics, err := readLyrics(*file, *inline)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	if *pick < 0 || *pick > 4 {
		fmt.Fprintln(stderr, "Error: -pick must be between 0 and 4")
		return 2
	}

	flow := client.NewFlow(c.client(stderr))
	sb, err := flow.Submit(ctx, lyrics, *scenes)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "session %s: %d scenes (%s)\n", sb.SessionID, len(sb.Storyboard.Scenes), sb.Storyboard.MoodAnalysis)

	candidates, err := flow.Confirm(ctx)
	if err != nil {
		return fail(stderr, err)
	}
	reference := ""
	if *pick > 0 && *pick <= len(candidates) {
		reference = candidates[*pick-1].URL
		fmt.Fprintf(stdout, "using protagonist %s\n", candidates[*pick-1].ID)
	}

	outcome, err := flow.Render(ctx, reference, *aspect, progressPrinter(stdout))
	if code := export(*out, outcome.Images, stdout, stderr); code != 0 {
		return code
	}
	if err != nil {
		return fail(stderr, err)
	}
	if outcome.Cancelled {
		fmt.Fprintf(stderr, "cancelled after %d scenes\n", len(outcome.Images))
		return 130
	}
	return 0
}

func progressPrinter(w io.Writer) client.Handler {
	return func(ev sse.Event) {
		switch ev.Kind {
		case sse.KindProgress:
			p := ev.Progress
			status := "ok"
			if p.Failed {
				status = "failed: " + p.Details
			}
			fmt.Fprintf(w, "[%d/%d] scene %d %s\n", p.Progress, p.Total, p.SceneNumber, status)
		case sse.KindCompleted:
			fmt.Fprintf(w, "completed: %d images\n", len(ev.Completed.SceneImages))
		}
	}
}

func export(dir string, images []string, stdout, stderr io.Writer) int {
	if dir == "" || len(images) == 0 {
		return 0
	}
	written, err := client.ExportImages(dir, images)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "wrote %d images to %s\n", len(written), dir)
	return 0
}

func abbreviate(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
