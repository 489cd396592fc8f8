package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/debug"
)

// HistoryAction lists recent conversions from GET /v1/conversions.
func HistoryAction(ctx context.Context, cmd *cli.Command) error {
	c := newClient(cmd.String("url"), cmd.String("api-key"), cmd.Duration("timeout"))

	q := url.Values{}
	q.Set("limit", strconv.Itoa(int(cmd.Int("limit"))))
	if s := cmd.String("status"); s != "" {
		q.Set("status", s)
	}

	var list api.RecordList
	if err := c.getJSON(ctx, "/v1/conversions?"+q.Encode(), &list); err != nil {
		return err
	}

	w := cmd.Root().Writer
	if len(list.Data) == 0 {
		fmt.Fprintln(w, "no conversions recorded")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "File", "Status", "Kind", "XML bytes", "Duration", "Created")
	for _, r := range list.Data {
		table.Append(
			r.ID,
			r.Filename,
			string(r.Status),
			r.FailureKind,
			strconv.Itoa(r.XMLBytes),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339),
		)
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, r := range list.Data {
		if r.Note != "" {
			fmt.Fprintf(w, "%s: %s\n", r.ID, debug.Truncate(r.Note, 120))
		}
	}
	if list.HasMore {
		fmt.Fprintln(w, "(more records available)")
	}
	return nil
}
