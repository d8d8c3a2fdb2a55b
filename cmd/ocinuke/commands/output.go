package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// maxFailureLines caps the per-resource failure listing in text output.
const maxFailureLines = 15

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatElapsed renders a duration at a resolution worth reading.
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// sortedTypes returns the per-type summary keys in stable order.
func sortedTypes(byType map[string]*engine.TypeSummary) []string {
	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// printRunSummary renders the result of a completed run as text.
func printRunSummary(w io.Writer, run *engine.Run) {
	fmt.Fprintf(w, "\nRun %s: %s\n", run.ID, run.Status)
	fmt.Fprintf(w, "  Compartment: %s\n", run.CompartmentID)
	fmt.Fprintf(w, "  Regions:     %s\n", strings.Join(run.Regions, ", "))
	if run.Summary != nil {
		fmt.Fprintf(w, "  Elapsed:     %s\n", formatElapsed(run.Summary.Elapsed))
	}

	if run.Summary != nil && len(run.Summary.ByType) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  TYPE\tDISCOVERED\tSUCCEEDED\tGONE\tFAILED\tSKIPPED")
		for _, name := range sortedTypes(run.Summary.ByType) {
			ts := run.Summary.ByType[name]
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\n",
				name, ts.Discovered, ts.Succeeded, ts.AlreadyGone, ts.Failed, ts.Skipped)
		}
		fmt.Fprintf(tw, "  total\t%d\t%d\t%d\t%d\t%d\n",
			run.Summary.Discovered, run.Summary.Succeeded, run.Summary.AlreadyGone,
			run.Summary.Failed, run.Summary.Skipped)
		tw.Flush()
	}

	printFailures(w, run)
	printCompartmentOutcome(w, run)

	if run.Error != nil {
		fmt.Fprintf(w, "\nFatal error: %s\n", run.Error.Error())
	}
}

// printFailures lists failed resources with their final errors.
func printFailures(w io.Writer, run *engine.Run) {
	var failed []*engine.DeletionOutcome
	for _, o := range run.Outcomes {
		if o.Status == engine.OutcomeFailed {
			failed = append(failed, o)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(w, "\nFailed resources:\n")
	for i, o := range failed {
		if i == maxFailureLines {
			fmt.Fprintf(w, "  ... and %d more\n", len(failed)-maxFailureLines)
			break
		}
		detail := ""
		if o.LastError != nil {
			detail = ": " + o.LastError.Error()
		}
		fmt.Fprintf(w, "  %s %s (%d attempts)%s\n",
			o.Record.ResourceType, o.Record.Identifier, o.Attempts, detail)
	}
}

// printCompartmentOutcome renders the finalizer result, when one exists.
func printCompartmentOutcome(w io.Writer, run *engine.Run) {
	fo := run.Compartment
	if fo == nil {
		return
	}

	switch {
	case fo.Deleted:
		fmt.Fprintf(w, "\nCompartment deletion accepted after %d attempt(s).\n", fo.Attempts)
	case !fo.Attempted:
		fmt.Fprintf(w, "\nCompartment not deleted: %s\n", fo.Reason)
	default:
		reason := fo.Reason
		if reason == "" && fo.LastError != nil {
			reason = fo.LastError.Error()
		}
		fmt.Fprintf(w, "\nCompartment deletion failed: %s\n", reason)
	}
}

// planCounts buckets dry-run outcomes per resource type.
type planCounts struct {
	wouldDelete int
	protected   int
	filtered    int
	unsupported int
}

// printPlan renders a dry run as a would-delete report.
func printPlan(w io.Writer, run *engine.Run) {
	fmt.Fprintf(w, "Plan for compartment %s\n", run.CompartmentID)
	fmt.Fprintf(w, "Regions: %s\n", strings.Join(run.Regions, ", "))

	byType := make(map[string]*planCounts)
	var total planCounts
	var protectedOutcomes []*engine.DeletionOutcome

	for _, o := range run.Outcomes {
		counts := byType[o.Record.ResourceType]
		if counts == nil {
			counts = &planCounts{}
			byType[o.Record.ResourceType] = counts
		}

		switch o.SkipReason {
		case engine.SkipReasonDryRun:
			counts.wouldDelete++
			total.wouldDelete++
		case engine.SkipReasonFiltered:
			counts.filtered++
			total.filtered++
		case engine.SkipReasonNoDescriptor:
			counts.unsupported++
			total.unsupported++
		case engine.SkipReasonCancelled:
			// Cancelled plans report what they got to.
		default:
			// Everything else is a protection verdict, carrying the rule.
			counts.protected++
			total.protected++
			protectedOutcomes = append(protectedOutcomes, o)
		}
	}

	if len(byType) == 0 {
		fmt.Fprintln(w, "\nNothing to delete: the compartment is already empty.")
		return
	}

	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  TYPE\tDELETE\tPROTECTED\tFILTERED\tUNSUPPORTED")
	for _, name := range names {
		c := byType[name]
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\n",
			name, c.wouldDelete, c.protected, c.filtered, c.unsupported)
	}
	fmt.Fprintf(tw, "  total\t%d\t%d\t%d\t%d\n",
		total.wouldDelete, total.protected, total.filtered, total.unsupported)
	tw.Flush()

	if len(protectedOutcomes) > 0 {
		fmt.Fprintf(w, "\nProtected resources:\n")
		for _, o := range protectedOutcomes {
			fmt.Fprintf(w, "  %s %s: %s\n", o.Record.ResourceType, o.Record.Identifier, o.SkipReason)
		}
	}

	fmt.Fprintf(w, "\n%d resource(s) would be deleted.\n", total.wouldDelete)
	if fo := run.Compartment; fo != nil && fo.Reason == engine.SkipReasonDryRun {
		fmt.Fprintln(w, "The compartment itself would be deleted afterwards.")
	}
}
