package biometric

import (
	"testing"

	"biolock.io/infrastructure/biometric/types"
)

func TestVectorDigestStable(t *testing.T) {
	vector := vectorOf(0.1, 0.2, 0.3, 0.4)

	first, err := vectorDigest(vector)
	if err != nil {
		t.Fatal(err)
	}
	second, err := vectorDigest(vector)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("same vector digested differently: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("digest is not hex sha256: %q", first)
	}
}

func TestVectorDigestSensitivity(t *testing.T) {
	base := vectorOf(0.1, 0.2, 0.3, 0.4)
	baseDigest, err := vectorDigest(base)
	if err != nil {
		t.Fatal(err)
	}

	changedValues := vectorOf(0.1, 0.2, 0.3, 0.5)
	changedModality := base
	changedModality.Modality = types.ModalityPalmprint

	for name, other := range map[string]types.FeatureVector{
		"values":   changedValues,
		"modality": changedModality,
	} {
		digest, err := vectorDigest(other)
		if err != nil {
			t.Fatal(err)
		}
		if digest == baseDigest {
			t.Fatalf("digest insensitive to %s change", name)
		}
	}
}

func TestNewTemplateStampsIdentity(t *testing.T) {
	vector := vectorOf(0.5, 0.5, 0.5, 0.5)

	tpl, err := newTemplate("alice", vector, acceptedQuality())
	if err != nil {
		t.Fatal(err)
	}
	if tpl.ID == "" {
		t.Fatal("template has no id")
	}
	if tpl.SubjectID != "alice" || tpl.Modality != types.ModalityFace {
		t.Fatalf("template misattributed: %s/%s", tpl.SubjectID, tpl.Modality)
	}
	if !tpl.Active {
		t.Fatal("fresh template not active")
	}
	if tpl.CreatedAt.IsZero() {
		t.Fatal("template has no creation time")
	}

	wantDigest, err := vectorDigest(vector)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Digest != wantDigest {
		t.Fatalf("template digest %s, want %s", tpl.Digest, wantDigest)
	}

	// identical samples at different times must collide on digest
	later, err := newTemplate("alice", vector, acceptedQuality())
	if err != nil {
		t.Fatal(err)
	}
	if later.Digest != tpl.Digest {
		t.Fatal("digest depends on creation time")
	}
	if later.ID == tpl.ID {
		t.Fatal("template ids must be unique")
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	values := []float64{0, 0.25, -1.5, 1e-9, 42}

	encoded, err := EncodeVector(values)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeVector(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(values) {
		t.Fatalf("round trip length %d, want %d", len(decoded), len(values))
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("value %d changed: %f vs %f", i, decoded[i], values[i])
		}
	}
}

func TestDecodeVectorRejectsGarbage(t *testing.T) {
	if _, err := DecodeVector([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Fatal("expected decode failure")
	}
}
