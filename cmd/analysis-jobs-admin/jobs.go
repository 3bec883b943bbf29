package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/client"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

type submitOptions struct {
	remoteOptions
	UserID   string
	DataType string
	DataRef  string
}

type statusOptions struct {
	remoteOptions
	JobID string
	Wait  time.Duration
	Query string
}

type historyOptions struct {
	remoteOptions
	UserID string
	Limit  int
	JSON   bool
}

type ingestOptions struct {
	remoteOptions
	JobID   string
	Payload string
	File    string
}

func newFlagSet(name string, remote *remoteOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if remote != nil {
		fs.StringVar(&remote.APIURL, "api", "", "API base URL (default $ANALYSIS_API_URL, local backends when empty)")
		fs.StringVar(&remote.Token, "token", "", "Bearer token for the API (default $ANALYSIS_API_TOKEN)")
	}
	return fs
}

func parseSubmitFlags(args []string) (submitOptions, error) {
	var opts submitOptions
	fs := newFlagSet("submit", &opts.remoteOptions)
	fs.StringVar(&opts.UserID, "user", "", "User id the job belongs to (required)")
	fs.StringVar(&opts.DataType, "type", "", "Data type: rppg, voice or fusion (required)")
	fs.StringVar(&opts.DataRef, "ref", "", "Reference to the uploaded data (required)")
	if err := fs.Parse(args); err != nil {
		return submitOptions{}, err
	}
	if opts.UserID == "" || opts.DataType == "" || opts.DataRef == "" {
		return submitOptions{}, errors.New("--user, --type and --ref are required")
	}
	return opts, nil
}

func parseStatusFlags(args []string) (statusOptions, error) {
	var opts statusOptions
	fs := newFlagSet("status", &opts.remoteOptions)
	fs.StringVar(&opts.JobID, "id", "", "Job id (required)")
	fs.DurationVar(&opts.Wait, "wait", 0, "Long-poll up to this long while the job is pending")
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the result")
	if err := fs.Parse(args); err != nil {
		return statusOptions{}, err
	}
	if opts.JobID == "" {
		return statusOptions{}, errors.New("--id is required")
	}
	if opts.Wait < 0 {
		return statusOptions{}, errors.New("--wait must not be negative")
	}
	return opts, nil
}

func parseHistoryFlags(args []string) (historyOptions, error) {
	var opts historyOptions
	fs := newFlagSet("history", &opts.remoteOptions)
	fs.StringVar(&opts.UserID, "user", "", "User id (required)")
	fs.IntVar(&opts.Limit, "limit", model.DefaultHistoryLimit, "Maximum jobs to list")
	fs.BoolVar(&opts.JSON, "json", false, "Print raw JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return historyOptions{}, err
	}
	if opts.UserID == "" {
		return historyOptions{}, errors.New("--user is required")
	}
	if opts.Limit <= 0 {
		return historyOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func parseIngestFlags(args []string) (ingestOptions, error) {
	var opts ingestOptions
	fs := newFlagSet("ingest", &opts.remoteOptions)
	fs.StringVar(&opts.JobID, "id", "", "Job id (required)")
	fs.StringVar(&opts.Payload, "payload", "", "Result payload as JSON")
	fs.StringVar(&opts.File, "file", "", "Read the result payload from a file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return ingestOptions{}, err
	}
	if opts.JobID == "" {
		return ingestOptions{}, errors.New("--id is required")
	}
	if (opts.Payload == "") == (opts.File == "") {
		return ingestOptions{}, errors.New("exactly one of --payload or --file is required")
	}
	return opts, nil
}

func runSubmit(cmdCtx *commandContext, args []string) error {
	opts, err := parseSubmitFlags(args)
	if err != nil {
		return err
	}
	api, closeAPI, err := openJobAPI(cmdCtx, opts.remoteOptions)
	if err != nil {
		return err
	}
	defer closeAPI()

	resp, err := api.Submit(cmdCtx.Ctx, model.SubmitJobRequest{
		UserID:   opts.UserID,
		DataType: model.DataType(opts.DataType),
		DataRef:  opts.DataRef,
	})
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	return printJSON(cmdCtx.Out, resp)
}

func runStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args)
	if err != nil {
		return err
	}
	api, closeAPI, err := openJobAPI(cmdCtx, opts.remoteOptions)
	if err != nil {
		return err
	}
	defer closeAPI()

	view, err := api.Status(cmdCtx.Ctx, opts.JobID, client.StatusOptions{Wait: opts.Wait, Query: opts.Query})
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	return printJSON(cmdCtx.Out, view)
}

func runHistory(cmdCtx *commandContext, args []string) error {
	opts, err := parseHistoryFlags(args)
	if err != nil {
		return err
	}
	api, closeAPI, err := openJobAPI(cmdCtx, opts.remoteOptions)
	if err != nil {
		return err
	}
	defer closeAPI()

	resp, err := api.History(cmdCtx.Ctx, opts.UserID, opts.Limit)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	if opts.JSON {
		return printJSON(cmdCtx.Out, resp)
	}
	return renderHistory(cmdCtx.Out, resp)
}

func runIngest(cmdCtx *commandContext, args []string) error {
	opts, err := parseIngestFlags(args)
	if err != nil {
		return err
	}
	payload, err := readPayload(opts)
	if err != nil {
		return err
	}
	api, closeAPI, err := openJobAPI(cmdCtx, opts.remoteOptions)
	if err != nil {
		return err
	}
	defer closeAPI()

	ack, err := api.Ingest(cmdCtx.Ctx, model.IngestResultRequest{JobID: opts.JobID, Payload: payload})
	if err != nil {
		return fmt.Errorf("ingest result: %w", err)
	}
	return printJSON(cmdCtx.Out, ack)
}

func readPayload(opts ingestOptions) (json.RawMessage, error) {
	if opts.Payload != "" {
		return json.RawMessage(opts.Payload), nil
	}
	var (
		raw []byte
		err error
	)
	if opts.File == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(opts.File)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return json.RawMessage(strings.TrimSpace(string(raw))), nil
}

func renderHistory(w io.Writer, resp *model.JobHistoryResponse) error {
	if resp.Total == 0 {
		return writef(w, "No jobs found.\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "JOB ID\tTYPE\tSTATUS\tCREATED\tDATA REF\n"); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	for _, job := range resp.History {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.DataType, job.Status, job.CreatedAt.UTC().Format(time.RFC3339), job.DataRef); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush history table: %w", err)
	}
	return writef(w, "\n%d job(s)\n", resp.Total)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
