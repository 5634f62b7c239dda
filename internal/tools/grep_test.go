package tools

import (
	"context"
	"testing"
)

func grepSetup(t *testing.T) (*Registry, *FileTools) {
	t.Helper()
	ft, _ := newWorkspace(t)
	ctx := context.Background()
	ft.Write(ctx, "main.go", "package main\n\nfunc main() {\n\t// TODO: wire flags\n}\n")
	ft.Write(ctx, "util.go", "package main\n\nfunc helper() {}\n")
	ft.Write(ctx, "notes.txt", "todo: buy milk\n")

	r := newTestRegistry(t)
	if err := RegisterGrep(r, ft); err != nil {
		t.Fatal(err)
	}
	return r, ft
}

func TestGrep_BasicMatch(t *testing.T) {
	r, _ := grepSetup(t)

	res := r.Dispatch(context.Background(), "grep", `{"pattern":"TODO"}`)
	if !res.Success {
		t.Fatalf("grep failed: %s", res.Error)
	}
	hits := res.Fields["matches"].([]grepHit)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].File != "main.go" || hits[0].Line != 4 {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestGrep_CaseInsensitive(t *testing.T) {
	r, _ := grepSetup(t)

	res := r.Dispatch(context.Background(), "grep", `{"pattern":"TODO","case_insensitive":true}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["count"] != 2 {
		t.Errorf("count = %v, want 2 (matching todo: in notes.txt too)", res.Fields["count"])
	}
}

func TestGrep_GlobFilter(t *testing.T) {
	r, _ := grepSetup(t)

	res := r.Dispatch(context.Background(), "grep", `{"pattern":"package","glob":"*.go"}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["count"] != 2 {
		t.Errorf("count = %v, want 2", res.Fields["count"])
	}
}

func TestGrep_SingleFileTarget(t *testing.T) {
	r, _ := grepSetup(t)

	res := r.Dispatch(context.Background(), "grep", `{"pattern":"helper","path":"util.go"}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["count"] != 1 {
		t.Errorf("count = %v, want 1", res.Fields["count"])
	}
}

func TestGrep_Limit(t *testing.T) {
	r, ft := grepSetup(t)
	ctx := context.Background()
	ft.Write(ctx, "many.txt", "hit\nhit\nhit\nhit\nhit\n")

	res := r.Dispatch(ctx, "grep", `{"pattern":"hit","limit":3}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["count"] != 3 {
		t.Errorf("count = %v, want 3", res.Fields["count"])
	}
	if res.Fields["truncated"] != true {
		t.Error("expected truncated flag")
	}
}

func TestGrep_InvalidRegex(t *testing.T) {
	r, _ := grepSetup(t)

	res := r.Dispatch(context.Background(), "grep", `{"pattern":"("}`)
	if res.Success {
		t.Error("invalid regex should fail")
	}
}

func TestGrep_NoMatches(t *testing.T) {
	r, _ := grepSetup(t)

	res := r.Dispatch(context.Background(), "grep", `{"pattern":"nothing_matches_this"}`)
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Fields["count"] != 0 {
		t.Errorf("count = %v, want 0", res.Fields["count"])
	}
}
