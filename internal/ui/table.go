package ui

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/alfredjeanlab/kquery/internal/model"
)

// PrintBeads writes beads as an aligned table.
func PrintBeads(w io.Writer, beads []*model.Bead) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tP\tASSIGNEE\tTITLE")
	for _, b := range beads {
		assignee := b.Assignee
		if assignee == "" {
			assignee = RenderMuted("-")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			RenderID(b.ID), RenderStatus(string(b.Status)), strconv.Itoa(b.Priority), assignee, b.Title)
	}
	return tw.Flush()
}

// PrintHistory writes audit entries one per line.
func PrintHistory(w io.Writer, entries []*model.HistoryEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tENTITY\tFIELD\tACTOR\tCHANGE")
	for _, h := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%q -> %q\n",
			RenderMuted(h.CreatedAt.Format("2006-01-02 15:04")), RenderID(h.EntityRef), h.Field, h.Actor, h.OldValue, h.NewValue)
	}
	return tw.Flush()
}
