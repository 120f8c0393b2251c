package access

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/docloom/docloom/types"
)

const testTable = `
users:
  alice:
    - project1/readme.txt
    - project1/spec.docx
    - shared/notes.txt
  bob:
    - shared
folders:
  project1:
    - bob
  shared:
    - alice
    - bob
`

func loadTestOracle(t *testing.T) *Oracle {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/docloom/access.yaml", []byte(testTable), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	o, err := Load(fs, "/etc/docloom/access.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return o
}

func TestAuthorizedPathsAreSortedJoins(t *testing.T) {
	o := loadTestOracle(t)
	got := o.Authorized("alice")
	want := []string{"project1/readme.txt", "project1/spec.docx", "shared/notes.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Authorized(alice) = %v, want %v", got, want)
	}
}

func TestAuthorizedUnknownUserIsEmpty(t *testing.T) {
	o := loadTestOracle(t)
	if got := o.Authorized("mallory"); len(got) != 0 {
		t.Errorf("Authorized(mallory) = %v, want empty", got)
	}
}

func TestBareFolderGrantSeesLaterFiles(t *testing.T) {
	o := loadTestOracle(t)
	// bob's grant on shared is a bare folder name: he sees files seeded by
	// other users' entries and files added later.
	got := o.Authorized("bob")
	want := []string{"shared/notes.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Authorized(bob) = %v, want %v", got, want)
	}

	o.UpdateStructure("shared/plan.txt", types.EventCreate)
	got = o.Authorized("bob")
	want = []string{"shared/notes.txt", "shared/plan.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after create, Authorized(bob) = %v, want %v", got, want)
	}
}

func TestUpdateStructureIsIdempotent(t *testing.T) {
	o := loadTestOracle(t)

	o.UpdateStructure("project1/new.txt", types.EventCreate)
	o.UpdateStructure("project1/new.txt", types.EventCreate)
	paths := o.Authorized("alice")
	count := 0
	for _, p := range paths {
		if p == "project1/new.txt" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate create produced %d entries, want 1", count)
	}

	o.UpdateStructure("project1/new.txt", types.EventDelete)
	o.UpdateStructure("project1/new.txt", types.EventDelete)
	for _, p := range o.Authorized("alice") {
		if p == "project1/new.txt" {
			t.Error("path still authorized after delete")
		}
	}
}

func TestUpdateStructureIgnoresUnknownFolder(t *testing.T) {
	o := loadTestOracle(t)
	before := o.Authorized("alice")
	o.UpdateStructure("secret/file.txt", types.EventCreate)
	o.UpdateStructure("toplevel.txt", types.EventCreate)
	after := o.Authorized("alice")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("structure changed for untracked paths: %v -> %v", before, after)
	}
}

func TestCreateThenDeleteRestoresStructure(t *testing.T) {
	o := loadTestOracle(t)
	before := o.Authorized("alice")
	o.UpdateStructure("project1/tmp.txt", types.EventCreate)
	o.UpdateStructure("project1/tmp.txt", types.EventDelete)
	after := o.Authorized("alice")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("create+delete should restore structure: %v -> %v", before, after)
	}
}

func TestSubscribers(t *testing.T) {
	o := loadTestOracle(t)
	got := o.Subscribers("shared")
	want := []string{"alice", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Subscribers(shared) = %v, want %v", got, want)
	}
	if subs := o.Subscribers("nope"); len(subs) != 0 {
		t.Errorf("Subscribers(nope) = %v, want empty", subs)
	}
}

func TestFoldersDerivesFromAuthorizedPaths(t *testing.T) {
	o := loadTestOracle(t)
	got := o.Folders("alice")
	want := []string{"project1", "shared"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Folders(alice) = %v, want %v", got, want)
	}
}

func TestServiceHandle(t *testing.T) {
	o := loadTestOracle(t)
	svc := NewService(o)

	tests := []struct {
		name       string
		request    string
		wantStatus string
		wantPaths  int
	}{
		{"valid user", `{"user_id":"alice"}`, types.StatusSuccess, 3},
		{"unknown user", `{"user_id":"mallory"}`, types.StatusSuccess, 0},
		{"missing user", `{}`, types.StatusError, 0},
		{"malformed", `not json`, types.StatusError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, ok := svc.Handle([]byte(tt.request)).(types.AccessReply)
			if !ok {
				t.Fatal("Handle did not return an AccessReply")
			}
			if reply.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q (error: %s)", reply.Status, tt.wantStatus, reply.Error)
			}
			if reply.Status == types.StatusSuccess && len(reply.PathList) != tt.wantPaths {
				t.Errorf("pathlist length = %d, want %d", len(reply.PathList), tt.wantPaths)
			}
		})
	}
}

func TestAccessReplyPathListNeverNull(t *testing.T) {
	o := loadTestOracle(t)
	svc := NewService(o)
	reply := svc.Handle([]byte(`{"user_id":"mallory"}`))
	data, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(decoded["pathlist"]) != "[]" {
		t.Errorf("pathlist = %s, want []", decoded["pathlist"])
	}
}
