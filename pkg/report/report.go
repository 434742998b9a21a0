// Package report renders rotation plans and cycle summaries for the command
// line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/yurykabanov/logrotate/pkg/domain"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}

	return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
}

type planView struct {
	Rule                 string   `json:"rule" yaml:"rule"`
	Path                 string   `json:"path" yaml:"path"`
	SizeBytes            uint64   `json:"size_bytes" yaml:"size_bytes"`
	ModifiedAt           string   `json:"modified_at" yaml:"modified_at"`
	Generation           *uint32  `json:"generation,omitempty" yaml:"generation,omitempty"`
	Action               string   `json:"action" yaml:"action"`
	Reason               string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	ResultingGenerations []string `json:"resulting_generations,omitempty" yaml:"resulting_generations,omitempty"`
}

type targetView struct {
	Rule   string     `json:"rule" yaml:"rule"`
	Status string     `json:"status" yaml:"status"`
	Plans  []planView `json:"plans" yaml:"plans"`
	Errors []string   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type summaryView struct {
	CycleId    string       `json:"cycle_id" yaml:"cycle_id"`
	DryRun     bool         `json:"dry_run" yaml:"dry_run"`
	StartedAt  string       `json:"started_at" yaml:"started_at"`
	FinishedAt string       `json:"finished_at" yaml:"finished_at"`
	ExitCode   int          `json:"exit_code" yaml:"exit_code"`
	Targets    []targetView `json:"targets" yaml:"targets"`
	Errors     []string     `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newPlanView(p domain.Plan) planView {
	return planView{
		Rule:                 p.Rule.Name,
		Path:                 p.Target.Path,
		SizeBytes:            p.Target.SizeBytes,
		ModifiedAt:           p.Target.ModifiedAt.UTC().Format(time.RFC3339),
		Generation:           p.Target.GenerationIndex,
		Action:               p.Action.String(),
		Reason:               string(p.Reason),
		ResultingGenerations: p.ResultingGenerations,
	}
}

func newPlanViews(plans []domain.Plan) []planView {
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, newPlanView(p))
	}
	return views
}

func newSummaryView(s domain.Summary) summaryView {
	view := summaryView{
		CycleId:    s.CycleId,
		DryRun:     s.DryRun,
		StartedAt:  s.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: s.FinishedAt.UTC().Format(time.RFC3339),
		ExitCode:   s.ExitCode(),
		Targets:    make([]targetView, 0, len(s.Targets)),
		Errors:     errorStrings(s.Errors),
	}

	for _, t := range s.Targets {
		view.Targets = append(view.Targets, targetView{
			Rule:   t.Rule,
			Status: string(t.Status),
			Plans:  newPlanViews(t.Plans),
			Errors: errorStrings(t.Errors),
		})
	}

	return view
}

func errorStrings(errs []error) []string {
	var out []string
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// WritePlans renders the plan sequence of a cycle, in execution order.
func WritePlans(w io.Writer, format Format, plans []domain.Plan) error {
	views := newPlanViews(plans)

	switch format {
	case FormatJSON:
		return writeJSON(w, views)
	case FormatYAML:
		return writeYAML(w, views)
	case FormatText:
		return writePlansText(w, views)
	}

	return errors.Wrapf(ErrUnknownFormat, "%q", format)
}

// WriteSummary renders the outcome of a cycle.
func WriteSummary(w io.Writer, format Format, summary domain.Summary) error {
	view := newSummaryView(summary)

	switch format {
	case FormatJSON:
		return writeJSON(w, view)
	case FormatYAML:
		return writeYAML(w, view)
	case FormatText:
		return writeSummaryText(w, view)
	}

	return errors.Wrapf(ErrUnknownFormat, "%q", format)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(v)
	if err != nil {
		return err
	}

	return enc.Close()
}

func writePlansText(w io.Writer, plans []planView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RULE\tPATH\tSIZE\tACTION\tREASON\tRESULT")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			p.Rule, p.Path, p.SizeBytes, p.Action, dash(p.Reason), dash(strings.Join(p.ResultingGenerations, ",")))
	}

	return tw.Flush()
}

func writeSummaryText(w io.Writer, s summaryView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RULE\tSTATUS\tPLANS\tERRORS")
	for _, t := range s.Targets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", t.Rule, t.Status, len(t.Plans), len(t.Errors))
	}

	err := tw.Flush()
	if err != nil {
		return err
	}

	for _, t := range s.Targets {
		for _, e := range t.Errors {
			fmt.Fprintf(w, "error: %s: %s\n", t.Rule, e)
		}
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}

	_, err = fmt.Fprintf(w, "cycle %s finished with exit code %d\n", s.CycleId, s.ExitCode)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
