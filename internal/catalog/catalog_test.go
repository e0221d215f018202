package catalog

import (
	"sync"
	"testing"

	"github.com/alfredjeanlab/kquery/internal/model"
)

func TestDefault_BeadFields(t *testing.T) {
	c := Default()
	info, err := c.Lookup(model.EntityBead)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.Table != "beads" || info.IDField != "id" || info.DeleteFlag != "deleted" {
		t.Fatalf("info = %+v", info)
	}

	for _, tc := range []struct {
		path      string
		indexed   bool
		kind      Kind
		column    string
		joinAlias string
	}{
		{"id", true, KindString, "id", ""},
		{"title", true, KindString, "title", ""},
		{"status", true, KindString, "status", ""},
		{"priority", true, KindNumeric, "priority", ""},
		{"created_at", true, KindOther, "created_at", ""},
		{"closed_at", false, KindOther, "closed_at", ""},
		{"closed_by", true, KindString, "closed_by", ""},
		{"parent.id", true, KindString, "parent_id", ""},
		{"labels", true, KindString, "labels.label", "labels"},
		{"comments.author", true, KindString, "comments.author", "comments"},
		{"comments.text", true, KindString, "comments.text", "comments"},
		{"label_text", true, KindString, "", ""},
		{"fields", false, KindOther, "fields", ""},
	} {
		t.Run(tc.path, func(t *testing.T) {
			f, ok := info.Field(tc.path)
			if !ok {
				t.Fatalf("field %q not found", tc.path)
			}
			if f.Indexed != tc.indexed {
				t.Errorf("Indexed = %v, want %v", f.Indexed, tc.indexed)
			}
			if f.Kind != tc.kind {
				t.Errorf("Kind = %v, want %v", f.Kind, tc.kind)
			}
			if f.Column != tc.column {
				t.Errorf("Column = %q, want %q", f.Column, tc.column)
			}
			if f.JoinAlias != tc.joinAlias {
				t.Errorf("JoinAlias = %q, want %q", f.JoinAlias, tc.joinAlias)
			}
		})
	}

	if j, ok := info.Joins["comments"]; !ok || j.Table != "comments" || j.FK != "bead_id" {
		t.Errorf("comments join = %+v", j)
	}
	if !info.Fields["parent.id"].Identity {
		t.Error("parent.id should be an identity reference")
	}
	if !info.Fields["label_text"].Bridge {
		t.Error("label_text should be a bridge field")
	}
}

func TestInfo_JSONSubPath(t *testing.T) {
	info := Default().MustLookup(model.EntityBead)
	f, ok := info.Field("fields.team.name")
	if !ok {
		t.Fatal("expected json sub path to resolve")
	}
	if f.JSONColumn != "fields" || len(f.JSONPath) != 2 || f.JSONPath[1] != "name" || f.Indexed {
		t.Errorf("field = %+v", f)
	}
	if _, ok := info.Field("title.x"); ok {
		t.Error("sub path of a plain column should not resolve")
	}
}

func TestCatalog_IsIndexedAndFieldKind(t *testing.T) {
	c := Default()
	if !c.IsIndexed(model.EntityBead, "title") {
		t.Error("title should be indexed")
	}
	if c.IsIndexed(model.EntityBead, "notes") {
		t.Error("unknown path should not be indexed")
	}
	if c.IsIndexed("nope", "title") {
		t.Error("unknown entity should not be indexed")
	}
	if got := c.FieldKind(model.EntityBead, "priority"); got != KindNumeric {
		t.Errorf("FieldKind(priority) = %v", got)
	}
	if got := c.FieldKind(model.EntityHistory, "old_value"); got != KindString {
		t.Errorf("FieldKind(old_value) = %v", got)
	}
	if got := c.FieldKind(model.EntityBead, "missing"); got != KindOther {
		t.Errorf("FieldKind(missing) = %v", got)
	}
}

func TestCatalog_IndexedFields(t *testing.T) {
	info := Default().MustLookup(model.EntityBead)
	var numeric []string
	for _, f := range info.IndexedFields(KindNumeric) {
		numeric = append(numeric, f.Path)
	}
	if len(numeric) != 1 || numeric[0] != "priority" {
		t.Errorf("numeric fields = %v", numeric)
	}
	for _, f := range info.IndexedFields(KindString) {
		if f.Path == "id" {
			t.Error("identity field should not be listed as a text field")
		}
	}
}

func TestCatalog_LookupCachedConcurrently(t *testing.T) {
	c := Default()
	var wg sync.WaitGroup
	infos := make([]*Info, 16)
	for i := range infos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			infos[i], _ = c.Lookup(model.EntityBead)
		}(i)
	}
	wg.Wait()
	for _, info := range infos {
		if info == nil || info != infos[0] {
			t.Fatal("expected one cached Info shared by all callers")
		}
	}
}

func TestInfo_New(t *testing.T) {
	e := Default().MustLookup(model.EntityHistory).New()
	if _, ok := e.(*model.HistoryEntry); !ok {
		t.Errorf("New() = %T", e)
	}
}

type noID struct {
	Name string `json:"name"`
}

func (n *noID) EntityID() string { return n.Name }

type badKind struct {
	ID string `json:"id" search:"id"`
	X  string `json:"x" search:"sparkly"`
}

func (b *badKind) EntityID() string { return b.ID }

type plain struct {
	ID string `json:"id" search:"id"`
}

func (p *plain) EntityID() string { return p.ID }

func TestCatalog_BuildErrors(t *testing.T) {
	c := New()
	c.Register("noid", &noID{})
	c.Register("badkind", &badKind{})
	c.Register("baddelete", &plain{}, WithDeleteFlag("deleted"))
	c.Register("badbridge", &plain{}, WithBridge("x", IndexFullText))
	c.Register("badextra", &plain{}, WithAdditionalField("nope.x", IndexKeyword))

	for _, name := range []string{"noid", "badkind", "baddelete", "badbridge", "badextra", "unregistered"} {
		if _, err := c.Lookup(name); err == nil {
			t.Errorf("Lookup(%q) expected error", name)
		}
	}

	c.Register("plain", &plain{})
	if _, err := c.Lookup("plain"); err != nil {
		t.Errorf("Lookup(plain): %v", err)
	}
}
