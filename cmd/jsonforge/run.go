package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/jsonforge/types"
)

var (
	runIntent     string
	runSchemaPath string
	runShowTrace  bool

	batchPath      string
	batchShowTrace bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a document for an intent and a schema",
	Long: "Run the full loop: plan, generate, normalize, validate and route until the document " +
		"is valid or the round limit is reached.",
	Example: `  jsonforge run --intent "a customer of a bike shop" --schema customer.schema.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := readInput(runSchemaPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, runErr := a.engine.Run(ctx, runIntent, schema)
		if res == nil {
			return runErr
		}
		if err := printResult(cmd, res); err != nil {
			return err
		}
		return runErr
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run several requests concurrently",
	Long: "Read a JSON array of {\"user_intent\": ..., \"schema\": ...} objects and run them " +
		"with the configured parallelism.",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(batchPath)
		if err != nil {
			return err
		}
		var reqs []types.RunRequest
		if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
			return fmt.Errorf("parse requests: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.engine.RunBatch(ctx, reqs)
		type entry struct {
			Index  int              `json:"index"`
			Result *types.RunResult `json:"result,omitempty"`
			Error  string           `json:"error,omitempty"`
		}
		out := make([]entry, 0, len(results))
		failed := 0
		for _, r := range results {
			e := entry{Index: r.Index, Result: r.Result}
			if r.Err != nil {
				e.Error = r.Err.Error()
				failed++
			}
			if !batchShowTrace && e.Result != nil {
				e.Result.Trace = nil
			}
			out = append(out, e)
		}
		if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs did not produce a valid document", failed, len(results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runIntent, "intent", "i", "", "what the document should describe")
	runCmd.Flags().StringVarP(&runSchemaPath, "schema", "s", "", "JSON Schema file, - for stdin")
	runCmd.Flags().BoolVar(&runShowTrace, "trace", true, "include the routing trace")
	_ = runCmd.MarkFlagRequired("intent")
	_ = runCmd.MarkFlagRequired("schema")

	batchCmd.Flags().StringVarP(&batchPath, "requests", "r", "", "JSON file with an array of requests, - for stdin")
	batchCmd.Flags().BoolVar(&batchShowTrace, "trace", false, "include routing traces")
	_ = batchCmd.MarkFlagRequired("requests")
}

func printResult(cmd *cobra.Command, res *types.RunResult) error {
	if !runShowTrace {
		res.Trace = nil
	}
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Status != types.RunCompleted {
		fmt.Fprintf(cmd.ErrOrStderr(), "run %d ended with status %s\n", res.RunID, res.Status)
	}
	return nil
}
