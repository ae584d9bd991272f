package namedict

import (
	"testing"

	"github.com/reelsub/dubpipe/pkg/kv"
)

func newTestDict() *Dict {
	return OpenWithStore(kv.NewMemory(nil))
}

func TestResolveNameMissing(t *testing.T) {
	d := newTestDict()
	_, ok, err := d.ResolveName("平安")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no entry")
	}
}

func TestPutNameFirstWriteWins(t *testing.T) {
	d := newTestDict()
	if err := d.PutNameFirstWriteWins("平安", "Ping'an"); err != nil {
		t.Fatal(err)
	}
	if err := d.PutNameFirstWriteWins("平安", "SomethingElse"); err != nil {
		t.Fatal(err)
	}
	got, ok, err := d.ResolveName("平安")
	if err != nil || !ok {
		t.Fatalf("got %q, %v, %v", got, ok, err)
	}
	if got != "Ping'an" {
		t.Fatalf("expected first write to win, got %q", got)
	}
}

func TestGlossaryHitsOnlyMatching(t *testing.T) {
	d := newTestDict()
	_ = d.PutGlossary("赌场", "casino")
	_ = d.PutGlossary("庄家", "dealer")

	hits, err := d.GlossaryHits("今晚去赌场试试手气")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].English != "casino" {
		t.Fatalf("got %+v", hits)
	}
}

func TestCheckGlossaryViolation(t *testing.T) {
	hits := []GlossaryEntry{{Source: "赌场", English: "casino"}}
	violated := CheckGlossaryViolation(hits, "Let's go to the Casino tonight")
	if len(violated) != 0 {
		t.Fatalf("expected no violation (case-insensitive), got %+v", violated)
	}
	violated = CheckGlossaryViolation(hits, "Let's go have fun tonight")
	if len(violated) != 1 {
		t.Fatalf("expected violation, got %+v", violated)
	}
}
