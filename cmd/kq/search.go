package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/client"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search <entity> [text...]",
	Short:   "Search beads or history",
	GroupID: "query",
	Example: `  kq search bead login --where status=open --sort -priority
  kq search bead --request saved.yaml --remote prod
  kq search history --where actor=alice --max-rows 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := searchOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		req, err := buildRequest(opts, args[1:], cmd.InOrStdin())
		if err != nil {
			return err
		}

		entity := args[0]
		var resp *client.SearchResponse
		if opts.remote != "" {
			resp, err = searchRemote(cmd.Context(), opts, entity, req)
		} else {
			resp, err = searchLocal(cmd.Context(), entity, req)
		}
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), resp)
	},
}

func init() {
	f := searchCmd.Flags()
	f.String("request", "", "filter request file, JSON or YAML (- for stdin)")
	f.StringArray("where", nil, "condition: field=value, field!=value or field~pattern (repeatable)")
	f.StringArray("sort", nil, "sort key, prefix with - for descending (repeatable)")
	f.Int("max-rows", 0, "maximum rows to return")
	f.Bool("include-deleted", false, "include soft-deleted beads")
	f.String("remote", "", "search a remote server (@ for the active remote)")
	f.String("transport", "http", "remote transport (http or grpc)")
}

type searchOptions struct {
	requestFile    string
	where          []string
	sort           []string
	maxRows        int
	includeDeleted bool
	remote         string
	transport      string
}

func searchOptionsFromFlags(cmd *cobra.Command) (searchOptions, error) {
	var o searchOptions
	f := cmd.Flags()
	o.requestFile, _ = f.GetString("request")
	o.where, _ = f.GetStringArray("where")
	o.sort, _ = f.GetStringArray("sort")
	o.maxRows, _ = f.GetInt("max-rows")
	o.includeDeleted, _ = f.GetBool("include-deleted")
	o.remote, _ = f.GetString("remote")
	o.transport, _ = f.GetString("transport")
	if o.transport != "http" && o.transport != "grpc" {
		return o, fmt.Errorf("unknown transport %q (must be http or grpc)", o.transport)
	}
	return o, nil
}

// buildRequest merges the request file, text terms and flag conditions into
// one request. Flag conditions are ANDed with the file's.
func buildRequest(o searchOptions, text []string, stdin io.Reader) (*filter.Request, error) {
	req := &filter.Request{}
	if o.requestFile != "" {
		var data []byte
		var err error
		if o.requestFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(o.requestFile)
		}
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		// yaml.v3 also reads JSON.
		if err := yaml.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
	}
	if term := strings.TrimSpace(strings.Join(text, " ")); term != "" {
		req.Where = append(req.Where, filter.Condition{Op: "text", Value: term})
	}
	for _, w := range o.where {
		c, err := parseWhere(w)
		if err != nil {
			return nil, err
		}
		req.Where = append(req.Where, c)
	}
	for _, s := range o.sort {
		if strings.HasPrefix(s, "-") {
			req.Sort = append(req.Sort, filter.SortProperty{Path: s[1:], Descending: true})
		} else {
			req.Sort = append(req.Sort, filter.SortProperty{Path: s})
		}
	}
	if o.maxRows > 0 {
		req.MaxRows = o.maxRows
	}
	if o.includeDeleted {
		req.IncludeDeleted = true
	}
	return req, nil
}

func parseWhere(s string) (filter.Condition, error) {
	for _, op := range []struct{ sep, name string }{{"!=", "ne"}, {"~", "like"}, {"=", "eq"}} {
		field, value, ok := strings.Cut(s, op.sep)
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		if field == "" {
			break
		}
		if op.name == "like" {
			return filter.Condition{Op: op.name, Field: field, Value: value}, nil
		}
		return filter.Condition{Op: op.name, Field: field, Value: scalar(value)}, nil
	}
	return filter.Condition{}, fmt.Errorf("invalid condition %q (want field=value, field!=value or field~pattern)", s)
}

// scalar types a flag value: integers and booleans become numbers and bools.
func scalar(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

func searchLocal(ctx context.Context, entity string, req *filter.Request) (*client.SearchResponse, error) {
	b, err := openBackend(ctx, newLogger())
	if err != nil {
		return nil, err
	}
	defer b.Close()
	if err := b.searcher.Validate(entity, req); err != nil {
		return nil, err
	}

	page := b.searcher.Select(ctx, entity, req, nil, access.AllowAll{})
	resp := &client.SearchResponse{Entity: entity, Count: len(page)}
	for _, e := range page {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		resp.Results = append(resp.Results, raw)
	}
	return resp, nil
}

func searchRemote(ctx context.Context, o searchOptions, entity string, req *filter.Request) (*client.SearchResponse, error) {
	r, err := resolveRemote(o.remote)
	if err != nil {
		return nil, err
	}
	p := client.Principal{User: userName, Roles: access.ParseRoles(roleList)}

	var c client.Searcher
	switch o.transport {
	case "grpc":
		if r.GRPC == "" {
			return nil, fmt.Errorf("remote %q has no gRPC address", o.remote)
		}
		gc, err := client.NewGRPCClient(r.GRPC, r.Token)
		if err != nil {
			return nil, err
		}
		c = gc.As(p)
	default:
		c = client.NewHTTPClient(r.URL, r.Token).As(p)
	}
	defer c.Close()
	return c.Search(ctx, entity, req)
}

func printResults(w io.Writer, resp *client.SearchResponse) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	switch resp.Entity {
	case model.EntityBead:
		beads, err := resp.Beads()
		if err != nil {
			return err
		}
		if err := ui.PrintBeads(w, beads); err != nil {
			return err
		}
	case model.EntityHistory:
		entries := make([]*model.HistoryEntry, 0, len(resp.Results))
		for _, raw := range resp.Results {
			var h model.HistoryEntry
			if err := json.Unmarshal(raw, &h); err != nil {
				return err
			}
			entries = append(entries, &h)
		}
		if err := ui.PrintHistory(w, entries); err != nil {
			return err
		}
	default:
		for _, raw := range resp.Results {
			fmt.Fprintln(w, string(raw))
		}
	}
	fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("%d result(s)", resp.Count)))
	return nil
}
