package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/chatflow/pkg/graph"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
)

var errInvalidDocument = errors.New("flow document is invalid")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a flow document without storing it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the flow JSON document",
				Required: true,
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			path := command.String("file")

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			out := command.Root().Writer

			findings := validateDocument(raw)
			if len(findings) == 0 {
				_, _ = fmt.Fprintf(out, "%s: ok\n", path)

				return nil
			}

			for _, finding := range findings {
				_, _ = fmt.Fprintf(out, "%s: %s\n", path, finding)
			}

			return errInvalidDocument
		},
	}
}

// validateDocument runs the same checks a stored flow goes through: the
// document schema, node payload decoding, graph structure and the trigger.
// A non-empty graph must also contain a flow entry node.
func validateDocument(raw []byte) []string {
	if err := models.ValidateFlowDocument(raw); err != nil {
		return []string{err.Error()}
	}

	var doc web.FlowDocumentRequest
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []string{err.Error()}
	}

	findings := make([]string, 0)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				findings = append(findings, fmt.Sprintf("field %s fails %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			findings = append(findings, err.Error())
		}
	}

	store := graph.NewStore()
	if err := store.Load(doc.Nodes, doc.Edges); err != nil {
		findings = append(findings, err.Error())
	} else if store.NodeCount() > 0 && len(store.NodesByKind(models.NodeKindFlow)) == 0 {
		findings = append(findings, "flow has no entry node")
	}

	if err := models.DecodeTrigger(doc.Trigger).Validate(); err != nil {
		findings = append(findings, err.Error())
	}

	return findings
}
