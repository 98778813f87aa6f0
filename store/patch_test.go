package store

import (
	"reflect"
	"testing"
)

func TestPath_Overlaps(t *testing.T) {
	tests := []struct {
		a, b Path
		want bool
	}{
		{Path{"e1"}, Path{"e1", "ns", "m", "f"}, true},
		{Path{"e1", "ns", "m", "f"}, Path{"e1", "ns", "m", "f"}, true},
		{Path{"e1", "ns", "m", "f"}, Path{"e1", "ns", "m", "g"}, false},
		{Path{"e1", "ns"}, Path{"e2", "ns"}, false},
		{Path{"e1", "a"}, Path{"e1", "b", "m"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+"~"+tt.b.String(), func(t *testing.T) {
			if got := tt.a.overlaps(tt.b); got != tt.want {
				t.Errorf("Expected %s overlaps %s = %v", tt.a, tt.b, tt.want)
			}
			if got := tt.b.overlaps(tt.a); got != tt.want {
				t.Errorf("Expected %s overlaps %s = %v", tt.b, tt.a, tt.want)
			}
		})
	}
}

func TestApplyPatches_DoesNotModifyInput(t *testing.T) {
	in := map[string]Entity{"e1": counterEntity("e1", 0)}

	out := applyPatches(in, []Patch{
		{Op: OpReplace, Path: Path{"e1", "game", "Counter", "remaining"}, Value: 9},
		{Op: OpAdd, Path: Path{"e2"}, Value: counterEntity("e2", 1)},
	})

	if got := in["e1"].Models["game"]["Counter"]["remaining"]; got != 0 {
		t.Errorf("Expected input to keep 0, got %v", got)
	}
	if _, ok := in["e2"]; ok {
		t.Error("Expected input to stay without e2")
	}
	if got := out["e1"].Models["game"]["Counter"]["remaining"]; got != 9 {
		t.Errorf("Expected output 9, got %v", got)
	}
	if !reflect.DeepEqual(out["e2"], counterEntity("e2", 1)) {
		t.Errorf("Expected e2 added, got %v", out["e2"])
	}
}

func TestApplyPatches_Lenient(t *testing.T) {
	in := map[string]Entity{"e1": counterEntity("e1", 0)}

	out := applyPatches(in, []Patch{
		{Op: OpRemove, Path: Path{"gone"}},
		{Op: OpRemove, Path: Path{"gone", "ns", "m", "f"}},
		{Op: OpRemove, Path: Path{"e1", "missing", "m"}},
		{Op: OpReplace, Path: Path{"e3", "ns", "m", "f"}, Value: "v"},
	})

	if !reflect.DeepEqual(out["e1"], in["e1"]) {
		t.Errorf("Expected e1 unchanged, got %v", out["e1"])
	}
	if _, ok := out["gone"]; ok {
		t.Error("Expected gone to stay absent")
	}
	want := Entity{ID: "e3", Models: Models{"ns": Namespace{"m": Fields{"f": "v"}}}}
	if !reflect.DeepEqual(out["e3"], want) {
		t.Errorf("Expected missing parents to be created, got %v", out["e3"])
	}
}

func TestApplyPatches_NilParents(t *testing.T) {
	in := map[string]Entity{
		"e1": {ID: "e1", Models: Models{"ns": nil}},
		"e2": {ID: "e2", Models: Models{"ns": Namespace{"m": nil}}},
	}

	out := applyPatches(in, []Patch{
		{Op: OpReplace, Path: Path{"e1", "ns", "m", "f"}, Value: 1},
		{Op: OpAdd, Path: Path{"e2", "ns", "m", "f"}, Value: 2},
		{Op: OpRemove, Path: Path{"e2", "ns", "m", "g"}},
		{Op: OpReplace, Path: Path{"e2", "ns", "n"}, Value: Fields{"k": "v"}},
	})

	if want := (Models{"ns": Namespace{"m": Fields{"f": 1}}}); !reflect.DeepEqual(out["e1"].Models, want) {
		t.Errorf("Expected %v, got %v", want, out["e1"].Models)
	}
	want := Models{"ns": Namespace{"m": Fields{"f": 2}, "n": Fields{"k": "v"}}}
	if !reflect.DeepEqual(out["e2"].Models, want) {
		t.Errorf("Expected %v, got %v", want, out["e2"].Models)
	}
	if in["e1"].Models["ns"] != nil || in["e2"].Models["ns"]["m"] != nil {
		t.Error("Expected input nil records to stay nil")
	}
}

func TestApplyPatches_RemoveBelowNilParent(t *testing.T) {
	in := map[string]Entity{"e1": {ID: "e1", Models: Models{"ns": nil}}}

	out := applyPatches(in, []Patch{
		{Op: OpRemove, Path: Path{"e1", "ns", "m"}},
		{Op: OpRemove, Path: Path{"e1", "ns", "m", "f"}},
	})

	ns, ok := out["e1"].Models["ns"]
	if !ok || ns != nil {
		t.Errorf("Expected nil namespace to be left alone, got %v (present=%v)", ns, ok)
	}
}

func TestDraft_ReadsOwnWrites(t *testing.T) {
	base := map[string]Entity{"e1": counterEntity("e1", 0)}
	d := newDraft(base)

	d.SetField("e1", "game", "Counter", "remaining", 4)
	v, ok := d.Field("e1", "game", "Counter", "remaining")
	if !ok || v != 4 {
		t.Errorf("Expected draft to read 4, got %v (present=%v)", v, ok)
	}
	if got := base["e1"].Models["game"]["Counter"]["remaining"]; got != 0 {
		t.Errorf("Expected base to keep 0, got %v", got)
	}
}

func TestDraft_NoChangeSharesBase(t *testing.T) {
	base := map[string]Entity{"e1": counterEntity("e1", 0)}
	d := newDraft(base)

	d.SetField("e1", "game", "Counter", "remaining", 0)
	entities, patches, inverse := d.finish()

	if len(patches) != 0 || len(inverse) != 0 {
		t.Errorf("Expected no patches, got %v / %v", patches, inverse)
	}
	if !reflect.DeepEqual(entities, base) {
		t.Errorf("Expected base entities, got %v", entities)
	}
}

func TestDraft_UntouchedDraftReturnsBase(t *testing.T) {
	base := map[string]Entity{"e1": counterEntity("e1", 0)}
	d := newDraft(base)
	d.DeleteField("e1", "nope", "m", "f")
	d.DeleteModel("missing", "ns", "m")
	d.DeleteEntity("missing")

	entities, patches, _ := d.finish()
	if patches != nil {
		t.Errorf("Expected nil patches, got %v", patches)
	}
	if !reflect.DeepEqual(entities, base) {
		t.Errorf("Expected base entities, got %v", entities)
	}
}

func TestDraft_InverseIsReversed(t *testing.T) {
	base := map[string]Entity{"e1": counterEntity("e1", 0)}
	d := newDraft(base)
	d.SetField("e1", "game", "Counter", "remaining", 1)
	d.SetField("e2", "game", "Counter", "remaining", 2)

	_, patches, inverse := d.finish()
	if len(patches) != 2 || len(inverse) != 2 {
		t.Fatalf("Expected 2 patches each way, got %d / %d", len(patches), len(inverse))
	}
	if want := (Path{"e1", "game", "Counter", "remaining"}); !reflect.DeepEqual(patches[0].Path, want) {
		t.Errorf("Expected first patch at %s, got %s", want, patches[0].Path)
	}
	if want := (Path{"e2"}); !reflect.DeepEqual(patches[1].Path, want) {
		t.Errorf("Expected second patch at %s, got %s", want, patches[1].Path)
	}
	if want := (Patch{Op: OpRemove, Path: Path{"e2"}}); !reflect.DeepEqual(inverse[0], want) {
		t.Errorf("Expected %v first, got %v", want, inverse[0])
	}
	if inverse[1].Op != OpReplace {
		t.Errorf("Expected replace last, got %s", inverse[1].Op)
	}
}

func TestDraft_NilRecordsDiffAsReplace(t *testing.T) {
	base := map[string]Entity{"e1": {ID: "e1", Models: Models{
		"ns":   nil,
		"game": Namespace{"Counter": nil},
	}}}
	d := newDraft(base)
	d.SetField("e1", "ns", "m", "f", 1)
	d.SetModel("e1", "game", "Counter", Fields{"remaining": 3})

	_, patches, inverse := d.finish()
	want := []Patch{
		{Op: OpReplace, Path: Path{"e1", "game", "Counter"}, Value: Fields{"remaining": 3}},
		{Op: OpReplace, Path: Path{"e1", "ns"}, Value: Namespace{"m": Fields{"f": 1}}},
	}
	if !reflect.DeepEqual(patches, want) {
		t.Errorf("Expected forward %v, got %v", want, patches)
	}
	wantInverse := []Patch{
		{Op: OpReplace, Path: Path{"e1", "ns"}, Value: Namespace(nil)},
		{Op: OpReplace, Path: Path{"e1", "game", "Counter"}, Value: Fields(nil)},
	}
	if !reflect.DeepEqual(inverse, wantInverse) {
		t.Errorf("Expected inverse %v, got %v", wantInverse, inverse)
	}
}
