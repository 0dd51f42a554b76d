package biometric

import (
	"fmt"
	"os"

	"biolock.io/infrastructure/biometric/types"
	"biolock.io/infrastructure/validator"
	"gopkg.in/yaml.v3"
)

// ModalityConfig is the per-modality tuning table. Fingerprint, face and palmprint
// have materially different acceptable thresholds, so none of these are global
// constants.
type ModalityConfig struct {
	FeatureDimensionality int     `yaml:"feature_dimensionality" validate:"gt=0"`
	QualityFloor          float64 `yaml:"quality_floor" validate:"unit_interval"`
	MatchThreshold        float64 `yaml:"match_threshold" validate:"unit_interval"`
	RegionConfidenceFloor float64 `yaml:"region_confidence_floor" validate:"unit_interval"`
	TargetWidth           int     `yaml:"target_width" validate:"gt=0"`
	TargetHeight          int     `yaml:"target_height" validate:"gt=0"`
}

type Config struct {
	Modalities map[types.Modality]ModalityConfig `yaml:"modalities"`
	// PersistJournal gates shipping completed journals to the audit store.
	PersistJournal bool `yaml:"persist_journal"`
}

// ClassicalDimensionality is the fixed contract of the classical composite
// descriptor: 256 LBP bins + 96 oriented-gradient bins + 32 Gabor energies.
const ClassicalDimensionality = 256 + 96 + 32

// NeuralDimensionality is the fixed contract of the ONNX embedding path.
const NeuralDimensionality = 512

func DefaultConfig() Config {
	return Config{
		Modalities: map[types.Modality]ModalityConfig{
			types.ModalityFingerprint: {
				FeatureDimensionality: ClassicalDimensionality,
				QualityFloor:          0.5,
				MatchThreshold:        0.85,
				RegionConfidenceFloor: 0.4,
				TargetWidth:           192,
				TargetHeight:          192,
			},
			types.ModalityFace: {
				FeatureDimensionality: ClassicalDimensionality,
				QualityFloor:          0.5,
				MatchThreshold:        0.85,
				RegionConfidenceFloor: 0.45,
				TargetWidth:           160,
				TargetHeight:          160,
			},
			types.ModalityPalmprint: {
				FeatureDimensionality: ClassicalDimensionality,
				QualityFloor:          0.45,
				MatchThreshold:        0.82,
				RegionConfidenceFloor: 0.35,
				TargetWidth:           192,
				TargetHeight:          192,
			},
		},
	}
}

// LoadConfig returns the defaults overlaid with the YAML file at path, if any.
// An unreadable or invalid file is an error; a missing path just means defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("MODALITY_CONFIG_PATH")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read modality config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse modality config: %w", err)
		}
	}
	if os.Getenv("AUDIT_PERSIST_JOURNAL") == "true" {
		cfg.PersistJournal = true
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Modalities) == 0 {
		return fmt.Errorf("modality config table is empty")
	}
	for modality, mc := range c.Modalities {
		if !modality.Valid() {
			return fmt.Errorf("unknown modality %q in config table", modality)
		}
		if errs := validator.ValidatorInstance.ValidateStruct(mc); errs != nil {
			return fmt.Errorf("modality %s config invalid: %v", modality, (*errs)[0])
		}
	}
	return nil
}

// Modality looks up the tuning entry for m.
func (c Config) Modality(m types.Modality) (ModalityConfig, bool) {
	mc, ok := c.Modalities[m]
	return mc, ok
}
