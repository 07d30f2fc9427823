package domain

import "testing"

func TestPatchReplacesMutableFieldsOnly(t *testing.T) {
	existing := Account{ID: 10, Name: "Old name", Document: "00000000000", Phone: "+55 00 00000-0000"}
	src := Account{ID: 99, Name: "New name", Document: "12345678910", Phone: "+55 41 91234-1234"}

	got := existing.Patch(src)

	want := Account{ID: 10, Name: "New name", Document: "12345678910", Phone: "+55 41 91234-1234"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if existing.Name != "Old name" || src.ID != 99 {
		t.Fatal("inputs must not be mutated")
	}
}
