package dedupe

import (
	"strings"
	"testing"
)

const baseArticle = `The city council approved the new transit budget on Tuesday,
allocating funds for three additional bus lines and an extension of the light
rail corridor. Officials said construction on the first phase would begin in
the spring, with service expected within two years. Critics argued the plan
still underfunds accessibility upgrades at existing stations.`

func TestFingerprint_StableAndCaseInsensitive(t *testing.T) {
	a := Fingerprint(baseArticle)
	b := Fingerprint(baseArticle)
	if a != b {
		t.Error("fingerprint must be deterministic")
	}
	if a == 0 {
		t.Error("non-empty text must not fingerprint to zero")
	}

	upper := Fingerprint(strings.ToUpper(baseArticle))
	if upper != a {
		t.Error("case variants must fingerprint identically")
	}

	if Fingerprint("") != 0 {
		t.Error("empty text fingerprints to zero")
	}
	if Fingerprint("   \n\t  ") != 0 {
		t.Error("whitespace-only text fingerprints to zero")
	}
}

func TestSimilar_NearDuplicateVsDistinct(t *testing.T) {
	original := Fingerprint(baseArticle)

	// A syndicated copy: same body, different attribution line.
	syndicated := Fingerprint(baseArticle + "\nReporting contributed by the wire desk.")
	if !Similar(original, syndicated, DefaultThreshold) {
		t.Errorf("near-duplicate distance = %d, want <= %d",
			Distance(original, syndicated), DefaultThreshold)
	}

	distinct := Fingerprint(`Researchers published a survey of deep sea vents,
	cataloguing dozens of previously unknown chemosynthetic organisms living
	near volcanic fissures in the Pacific. The findings reshape assumptions
	about energy flow in aphotic ecosystems.`)
	if Similar(original, distinct, DefaultThreshold) {
		t.Errorf("distinct texts distance = %d, should exceed threshold",
			Distance(original, distinct))
	}
}

func TestDistance(t *testing.T) {
	if Distance(0, 0) != 0 {
		t.Error("identical fingerprints have distance 0")
	}
	if Distance(0, 1) != 1 {
		t.Error("single-bit difference has distance 1")
	}
	if Distance(0, ^uint64(0)) != 64 {
		t.Error("complement has distance 64")
	}
}

func TestDetector_MarksDuplicatesAgainstFirstSeen(t *testing.T) {
	d := NewDetector(DefaultThreshold)

	if key, dup := d.Check("https://a.example/post", baseArticle); dup {
		t.Fatalf("first text flagged as duplicate of %q", key)
	}

	key, dup := d.Check("https://b.example/mirror", baseArticle+"\nVia newswire.")
	if !dup {
		t.Fatal("near-duplicate not detected")
	}
	if key != "https://a.example/post" {
		t.Errorf("duplicate attributed to %q, want the first-seen key", key)
	}

	if _, dup := d.Check("https://c.example/other",
		"Entirely unrelated content about gardening techniques for arid climates, "+
			"covering drip irrigation, mulching, and drought-tolerant species selection."); dup {
		t.Error("distinct text wrongly flagged")
	}

	// Duplicates are not recorded: a third copy still points at the first.
	key, dup = d.Check("https://d.example/copy", baseArticle)
	if !dup || key != "https://a.example/post" {
		t.Errorf("third copy attributed to %q (dup=%v), want the first-seen key", key, dup)
	}
}

func TestDetector_EmptyTextNeverMatches(t *testing.T) {
	d := NewDetector(DefaultThreshold)
	d.Check("a", "")
	if key, dup := d.Check("b", ""); dup {
		t.Errorf("empty texts matched (%q)", key)
	}
}
