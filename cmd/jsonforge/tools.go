package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/jsonforge/heuristics"
	"github.com/songzhibin97/jsonforge/normalize"
	"github.com/songzhibin97/jsonforge/schemadraft"
	"github.com/songzhibin97/jsonforge/signature"
	"github.com/songzhibin97/jsonforge/validator"
)

var (
	toolSchemaPath string
	toolJSONPath   string
	toolBackend    string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the JSON Schema draft of a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := readInput(toolSchemaPath)
		if err != nil {
			return err
		}
		v, err := validator.NewFromName(toolBackend)
		if err != nil {
			return err
		}
		d := v.Detector()
		return printJSON(cmd.OutOrStdout(), struct {
			Primary    schemadraft.Draft   `json:"primary"`
			Candidates []schemadraft.Draft `json:"candidates"`
			Selected   schemadraft.Draft   `json:"selected"`
		}{
			Primary:    d.Detect(schema),
			Candidates: d.Candidates(schema),
			Selected:   d.Select(schema),
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a document against a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := readInput(toolSchemaPath)
		if err != nil {
			return err
		}
		doc, err := readInput(toolJSONPath)
		if err != nil {
			return err
		}
		v, err := validator.NewFromName(toolBackend)
		if err != nil {
			return err
		}
		check, err := v.CheckSchema(schema)
		if err != nil {
			return err
		}

		outcome := v.ValidateWithDraft(doc, check.CompactSchema, check.Version)
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Display())
		if !outcome.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "signature: %s\n", outcome.Signature())
			return fmt.Errorf("document is invalid under %s", check.Version)
		}
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Strip code fences and canonicalize string values",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readInput(toolJSONPath)
		if err != nil {
			return err
		}
		out, err := normalize.JSON(normalize.StripFences(doc))
		if err != nil {
			return err
		}
		return printRaw(cmd.OutOrStdout(), out)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report placeholder-like values",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readInput(toolJSONPath)
		if err != nil {
			return err
		}
		warnings, err := heuristics.NewAnalyzer().Analyze(normalize.StripFences(doc))
		if err != nil {
			return err
		}
		if warnings == nil {
			warnings = []string{}
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Warnings  []string `json:"warnings"`
			Signature string   `json:"signature"`
		}{
			Warnings:  warnings,
			Signature: signature.Of(warnings),
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{detectCmd, validateCmd} {
		c.Flags().StringVarP(&toolSchemaPath, "schema", "s", "", "JSON Schema file, - for stdin")
		c.Flags().StringVar(&toolBackend, "backend", validator.BackendJSONSchema, "validation backend: jsonschema or gojsonschema")
		_ = c.MarkFlagRequired("schema")
	}
	for _, c := range []*cobra.Command{validateCmd, normalizeCmd, analyzeCmd} {
		c.Flags().StringVarP(&toolJSONPath, "json", "j", "", "JSON document file, - for stdin")
		_ = c.MarkFlagRequired("json")
	}
}
