package neural

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"biolock.io/infrastructure/biometric"
	"biolock.io/infrastructure/biometric/types"
	"biolock.io/infrastructure/logger"
	"gocv.io/x/gocv"
)

// Embedder is the high-capacity extraction path: an ONNX embedding network run
// through OpenCV's DNN module. It is loaded once at process start and read-only for
// the life of the process. Deployments without a model simply never construct one;
// the capability probe in startup falls through to the classical path.
type Embedder struct {
	net       gocv.Net
	inputSize image.Point
}

type Config struct {
	ModelPath string
	InputSize image.Point
	Backend   gocv.NetBackendType
	Target    gocv.NetTargetType
}

// DefaultConfig looks for a deployed embedding model in the usual locations.
func DefaultConfig() Config {
	modelPath := os.Getenv("NEURAL_MODEL_PATH")
	if modelPath == "" {
		candidates := []string{
			"./models/embedder/arcface.onnx",
			"./models/embedder/mobilefacenet.onnx",
			"/usr/local/share/biolock/embedder.onnx",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				modelPath = candidate
				break
			}
		}
	}
	return Config{
		ModelPath: modelPath,
		InputSize: image.Pt(112, 112),
		Backend:   gocv.NetBackendDefault,
		Target:    gocv.NetTargetCPU,
	}
}

// Available reports whether a model file is deployed. Called once at startup.
func Available() bool {
	cfg := DefaultConfig()
	if cfg.ModelPath == "" {
		return false
	}
	_, err := os.Stat(cfg.ModelPath)
	return err == nil
}

// NewEmbedder loads the network. Fails when the model is missing or unreadable
// rather than limping along without weights.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("neural: no embedding model deployed")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("neural: model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("neural: failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(cfg.Backend)
	net.SetPreferableTarget(cfg.Target)

	logger.Info("neural embedder initialized", logger.LoggerOptions{
		Key:  "model",
		Data: filepath.Base(cfg.ModelPath),
	}, logger.LoggerOptions{
		Key:  "input_size",
		Data: fmt.Sprintf("%dx%d", cfg.InputSize.X, cfg.InputSize.Y),
	})

	return &Embedder{net: net, inputSize: cfg.InputSize}, nil
}

func (e *Embedder) Name() string { return "neural" }

func (e *Embedder) Dimensionality() int { return biometric.NeuralDimensionality }

// Extract runs a forward pass over the region and L2-normalizes the embedding. The
// DNN call itself is not interruptible; the selector enforces the latency budget
// around it.
func (e *Embedder) Extract(ctx context.Context, region *image.Gray, modality types.Modality) (types.FeatureVector, error) {
	if ctx.Err() != nil {
		return types.FeatureVector{}, biometric.ErrCancelled
	}

	mat, err := gocv.ImageGrayToMatGray(region)
	if err != nil {
		return types.FeatureVector{}, fmt.Errorf("neural: convert region: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorGrayToBGR)

	blob := gocv.BlobFromImage(bgr, 1.0/127.5, e.inputSize,
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	defer output.Close()

	values := make([]float64, biometric.NeuralDimensionality)
	for i := range values {
		values[i] = float64(output.GetFloatAt(0, i))
	}
	l2Normalize(values)

	return types.FeatureVector{
		Values:    values,
		Modality:  modality,
		Extractor: e.Name(),
	}, nil
}

// Close releases the network.
func (e *Embedder) Close() error {
	if !e.net.Empty() {
		return e.net.Close()
	}
	return nil
}

func l2Normalize(values []float64) {
	norm := 0.0
	for _, v := range values {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range values {
		values[i] /= norm
	}
}
