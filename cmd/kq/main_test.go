package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/alfredjeanlab/kquery/internal/filter"
)

func TestParseWhere(t *testing.T) {
	tests := []struct {
		in      string
		want    filter.Condition
		wantErr bool
	}{
		{in: "status=open", want: filter.Condition{Op: "eq", Field: "status", Value: "open"}},
		{in: "priority=2", want: filter.Condition{Op: "eq", Field: "priority", Value: 2}},
		{in: "deleted=true", want: filter.Condition{Op: "eq", Field: "deleted", Value: true}},
		{in: "assignee!=bob", want: filter.Condition{Op: "ne", Field: "assignee", Value: "bob"}},
		{in: "title~log%", want: filter.Condition{Op: "like", Field: "title", Value: "log%"}},
		{in: "title~12", want: filter.Condition{Op: "like", Field: "title", Value: "12"}},
		{in: "=x", wantErr: true},
		{in: "nothing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhere(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseWhere(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.yaml")
	data := `where:
  - op: in
    field: status
    values: [open, blocked]
max_rows: 50
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	req, err := buildRequest(searchOptions{
		requestFile: path,
		where:       []string{"assignee=alice"},
		sort:        []string{"-priority", "id"},
		maxRows:     10,
	}, []string{"login", "bug"}, nil)
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if len(req.Where) != 3 {
		t.Fatalf("where = %+v, want 3 conditions", req.Where)
	}
	if req.Where[0].Op != "in" || len(req.Where[0].Values) != 2 {
		t.Errorf("file condition = %+v", req.Where[0])
	}
	if req.Where[1].Op != "text" || req.Where[1].Value != "login bug" {
		t.Errorf("text condition = %+v", req.Where[1])
	}
	wantSort := []filter.SortProperty{{Path: "priority", Descending: true}, {Path: "id"}}
	if !reflect.DeepEqual(req.Sort, wantSort) {
		t.Errorf("sort = %+v, want %+v", req.Sort, wantSort)
	}
	if req.MaxRows != 10 {
		t.Errorf("max rows = %d, want flag value 10", req.MaxRows)
	}
	if _, err := req.Build("deleted"); err != nil {
		t.Errorf("built request does not validate: %v", err)
	}
}

func TestBuildRequest_JSONFromStdin(t *testing.T) {
	req, err := buildRequest(searchOptions{requestFile: "-"},
		nil, strings.NewReader(`{"where":[{"op":"eq","field":"status","value":"open"}],"include_deleted":true}`))
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if len(req.Where) != 1 || !req.IncludeDeleted {
		t.Errorf("request = %+v", req)
	}
}

func TestRemotesConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}

	cfg.Active = "prod"
	cfg.Remotes["prod"] = Remote{URL: "https://kq.example.com", GRPC: "kq.example.com:9090", Token: "tok"}
	cfg.Remotes["local"] = Remote{URL: "http://localhost:8080"}
	if err := saveRemotesConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	path, _ := remoteConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("remotes file mode = %o, want 600", perm)
	}

	r, err := resolveRemote("@")
	if err != nil {
		t.Fatalf("resolve active: %v", err)
	}
	if r.GRPC != "kq.example.com:9090" || r.Token != "tok" {
		t.Errorf("active remote = %+v", r)
	}
	if _, err := resolveRemote("staging"); err == nil {
		t.Error("expected error for unknown remote")
	}
}

func TestRemoteCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	run := func(args ...string) string {
		t.Helper()
		var out strings.Builder
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("kq %v: %v", args, err)
		}
		return out.String()
	}

	run("remote", "add", "a", "http://a:8080")
	run("remote", "add", "b", "http://b:8080", "--grpc", "b:9090")
	if out := run("remote", "list"); !strings.Contains(out, "* a") || !strings.Contains(out, "b:9090") {
		t.Errorf("list output:\n%s", out)
	}
	run("remote", "use", "b")
	if out := run("remote", "list"); !strings.Contains(out, "* b") {
		t.Errorf("list after use:\n%s", out)
	}
	run("remote", "remove", "b")
	cfg, _ := loadRemotesConfig()
	if cfg.Active != "" || len(cfg.Remotes) != 1 {
		t.Errorf("after remove: %+v", cfg)
	}
}
