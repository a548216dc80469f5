package fanin

import (
	"fmt"
	"sync"
	"testing"

	"github.com/neyoyoyminoy/palletPortal/internal/manifest"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

func testFanIn(t *testing.T, raw string) *FanIn {
	t.Helper()
	m, err := manifest.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return New(manifest.NewMatcher(m))
}

func ev(stream, raw string) types.DecodedEvent {
	return types.DecodedEvent{StreamID: stream, Raw: raw}
}

// TestAcceptOutcomes walks one session through miss, new match, duplicate
// and completion.
func TestAcceptOutcomes(t *testing.T) {
	f := testFanIn(t, "A1 B2 C3")

	out := f.Accept(ev("cam0", "zzz"))
	if !out.NotOnManifest || out.Found != 0 {
		t.Errorf("miss: got %+v", out)
	}

	out = f.Accept(ev("cam0", "a1"))
	if !out.NewMatch || out.Code != "A1" || out.Found != 1 || out.Expected != 3 {
		t.Errorf("first match: got %+v", out)
	}

	out = f.Accept(ev("cam1", "A1"))
	if !out.AlreadyFound || out.NewMatch || out.Found != 1 {
		t.Errorf("duplicate: got %+v", out)
	}

	if out = f.Accept(ev("cam0", "B2")); out.Completed {
		t.Errorf("premature completion at 2/3: %+v", out)
	}
	out = f.Accept(ev("cam1", "c3"))
	if !out.Completed || out.Found != 3 {
		t.Errorf("completion: got %+v", out)
	}
	if !f.Completed() {
		t.Error("expected fan-in to report completed")
	}
}

// TestAcceptIdempotent verifies the same code seen many times from both
// streams counts once.
func TestAcceptIdempotent(t *testing.T) {
	f := testFanIn(t, "A1 B2")

	for i := 0; i < 50; i++ {
		f.Accept(ev("cam0", "A1"))
		f.Accept(ev("cam1", "a1"))
	}

	if got := f.Found(); got != 1 {
		t.Errorf("expected 1 found after duplicates, got %d", got)
	}
	stats := f.Snapshot()
	if stats.NewMatches != 1 {
		t.Errorf("expected 1 new match, got %d", stats.NewMatches)
	}
	if stats.Duplicates != 99 {
		t.Errorf("expected 99 duplicates, got %d", stats.Duplicates)
	}
}

// TestAcceptAfterCompletion verifies a completed fan-in classifies further
// decodes without ever firing completion again.
func TestAcceptAfterCompletion(t *testing.T) {
	f := testFanIn(t, "A1")

	if out := f.Accept(ev("cam0", "A1")); !out.Completed {
		t.Fatalf("expected completion, got %+v", out)
	}
	if out := f.Accept(ev("cam1", "A1")); out.Completed || !out.AlreadyFound {
		t.Errorf("post-completion duplicate: got %+v", out)
	}
	if out := f.Accept(ev("cam1", "junk")); out.Completed || !out.NotOnManifest {
		t.Errorf("post-completion miss: got %+v", out)
	}
}

// TestFoundCodesManifestOrder verifies the found snapshot follows manifest
// order, not arrival order.
func TestFoundCodesManifestOrder(t *testing.T) {
	f := testFanIn(t, "A1 B2 C3")

	f.Accept(ev("cam0", "c3"))
	f.Accept(ev("cam0", "a1"))

	got := f.FoundCodes()
	if len(got) != 2 || got[0] != "A1" || got[1] != "C3" {
		t.Errorf("expected [A1 C3], got %v", got)
	}
}

// TestCompletionExactlyOnceConcurrent hammers one fan-in from several
// streams that all see every code repeatedly: completion must fire exactly
// once and the found set must equal the manifest.
func TestCompletionExactlyOnceConcurrent(t *testing.T) {
	const codes = 10
	const streams = 4
	const rounds = 25

	raw := ""
	for i := 0; i < codes; i++ {
		raw += fmt.Sprintf("PLT-%04d\n", i)
	}
	f := testFanIn(t, raw)

	var wg sync.WaitGroup
	completions := make(chan Outcome, streams*rounds*codes)
	for s := 0; s < streams; s++ {
		wg.Add(1)
		go func(stream int) {
			defer wg.Done()
			id := fmt.Sprintf("cam%d", stream)
			for r := 0; r < rounds; r++ {
				for i := 0; i < codes; i++ {
					out := f.Accept(ev(id, fmt.Sprintf("plt-%04d", i)))
					if out.Completed {
						completions <- out
					}
				}
			}
		}(s)
	}
	wg.Wait()
	close(completions)

	fired := 0
	for range completions {
		fired++
	}
	if fired != 1 {
		t.Errorf("expected exactly 1 completion, got %d", fired)
	}
	if got := f.Found(); got != codes {
		t.Errorf("expected %d found, got %d", codes, got)
	}

	stats := f.Snapshot()
	if stats.NewMatches != codes {
		t.Errorf("expected %d new matches, got %d", codes, stats.NewMatches)
	}
	if want := uint64(streams * rounds * codes); stats.Seen != want {
		t.Errorf("expected %d seen, got %d", want, stats.Seen)
	}
}
