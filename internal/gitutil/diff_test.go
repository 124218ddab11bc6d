package gitutil

import (
	"strings"
	"testing"
)

func TestCalculateDiffIdenticalInputsEmpty(t *testing.T) {
	inputs := []string{"", "one line\n", "a\nb\nc\n", "no trailing newline"}

	for _, x := range inputs {
		d := CalculateDiff(x, x, "file.txt")
		if d.Type != ChangeNoChange {
			t.Errorf("CalculateDiff(x, x) type = %s, want no_change", d.Type)
		}
		if d.HasChanges || d.Additions != 0 || d.Deletions != 0 || d.Text != "" {
			t.Errorf("CalculateDiff(x, x) not empty: %+v", d)
		}
	}
}

func TestCalculateDiffDeterministic(t *testing.T) {
	original := "alpha\nbeta\ngamma\n"
	proposed := "alpha\nBETA\ngamma\ndelta\n"

	first := CalculateDiff(original, proposed, "f")
	for i := 0; i < 5; i++ {
		again := CalculateDiff(original, proposed, "f")
		if again.Text != first.Text || again.Additions != first.Additions || again.Deletions != first.Deletions {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestCalculateDiffCreateAndDelete(t *testing.T) {
	create := CalculateDiff("", "new content\n", "new.txt")
	if create.Type != ChangeCreate {
		t.Fatalf("type = %s, want create", create.Type)
	}
	if create.Additions != 1 || create.Deletions != 0 {
		t.Fatalf("create counts = +%d/-%d, want +1/-0", create.Additions, create.Deletions)
	}

	del := CalculateDiff("old content\n", "", "old.txt")
	if del.Type != ChangeDelete {
		t.Fatalf("type = %s, want delete", del.Type)
	}
	if del.Additions != 0 || del.Deletions != 1 {
		t.Fatalf("delete counts = +%d/-%d, want +0/-1", del.Additions, del.Deletions)
	}
}

func TestCalculateDiffModify(t *testing.T) {
	d := CalculateDiff("a\nb\nc\n", "a\nX\nc\n", "f.txt")

	if d.Type != ChangeModify {
		t.Fatalf("type = %s, want modify", d.Type)
	}
	if !d.HasChanges {
		t.Fatal("HasChanges should be true")
	}
	if !strings.Contains(d.Text, "-b") || !strings.Contains(d.Text, "+X") {
		t.Fatalf("diff text missing expected lines:\n%s", d.Text)
	}
	if !strings.Contains(d.Text, " a") {
		t.Fatalf("diff text missing context line:\n%s", d.Text)
	}
}
