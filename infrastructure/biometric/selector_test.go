package biometric

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"biolock.io/infrastructure/biometric/types"
)

// fakeEmbedder stands in for the model-backed path without loading a model.
type fakeEmbedder struct {
	delay time.Duration
}

func (f *fakeEmbedder) Name() string        { return "neural" }
func (f *fakeEmbedder) Dimensionality() int { return NeuralDimensionality }

func (f *fakeEmbedder) Extract(_ context.Context, _ *image.Gray, modality types.Modality) (types.FeatureVector, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	values := make([]float64, NeuralDimensionality)
	values[0] = 1
	return types.FeatureVector{Values: values, Modality: modality, Extractor: "neural"}, nil
}

func TestSelectorPrefersNeuralWhenPresent(t *testing.T) {
	selector := NewExtractorSelector(NewClassicalExtractor(), &fakeEmbedder{}, time.Second)

	if got := selector.Active().Name(); got != "neural" {
		t.Fatalf("active extractor %s, want neural", got)
	}

	vector, err := selector.Extract(context.Background(), makeSubjectImage(1, 64), types.ModalityFace)
	if err != nil {
		t.Fatal(err)
	}
	if vector.Extractor != "neural" || vector.Dimensionality() != NeuralDimensionality {
		t.Fatalf("served by %s with %d dims", vector.Extractor, vector.Dimensionality())
	}
}

func TestSelectorServesClassicalWithoutNeural(t *testing.T) {
	selector := NewExtractorSelector(NewClassicalExtractor(), nil, time.Second)

	if got := selector.Active().Name(); got != "classical" {
		t.Fatalf("active extractor %s, want classical", got)
	}

	vector, err := selector.Extract(context.Background(), makeSubjectImage(1, 64), types.ModalityFingerprint)
	if err != nil {
		t.Fatal(err)
	}
	if vector.Dimensionality() != ClassicalDimensionality {
		t.Fatalf("classical vector has %d dims", vector.Dimensionality())
	}
}

func TestSelectorDemotesAfterTimeout(t *testing.T) {
	selector := NewExtractorSelector(NewClassicalExtractor(), &fakeEmbedder{delay: 500 * time.Millisecond}, 20*time.Millisecond)

	_, err := selector.Extract(context.Background(), makeSubjectImage(1, 64), types.ModalityFace)
	var timeout *ExtractionTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("want ExtractionTimeoutError, got %v", err)
	}

	// the slow path stays demoted, later calls run classical without waiting
	if got := selector.Active().Name(); got != "classical" {
		t.Fatalf("post-timeout active extractor %s, want classical", got)
	}

	start := time.Now()
	vector, err := selector.Extract(context.Background(), makeSubjectImage(1, 64), types.ModalityFace)
	if err != nil {
		t.Fatal(err)
	}
	if vector.Extractor != "classical" {
		t.Fatalf("post-timeout extraction served by %s", vector.Extractor)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("demoted selector still waiting on the slow path")
	}
}

func TestSelectorHonorsCancellation(t *testing.T) {
	selector := NewExtractorSelector(NewClassicalExtractor(), &fakeEmbedder{delay: time.Second}, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := selector.Extract(ctx, makeSubjectImage(1, 64), types.ModalityFace)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
}
