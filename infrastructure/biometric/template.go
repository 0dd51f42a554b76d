package biometric

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"biolock.io/application/utils"
	"biolock.io/infrastructure/biometric/types"
	"github.com/fxamacker/cbor/v2"
)

// newTemplate builds the persisted unit for a successfully enrolled sample.
func newTemplate(subjectID string, vector types.FeatureVector, quality types.QualityReport) (types.Template, error) {
	digest, err := vectorDigest(vector)
	if err != nil {
		return types.Template{}, err
	}
	return types.Template{
		ID:        utils.GenerateUULDString(),
		SubjectID: subjectID,
		Modality:  vector.Modality,
		Vector:    vector,
		Digest:    digest,
		Quality:   quality,
		CreatedAt: time.Now(),
		Active:    true,
	}, nil
}

// vectorDigest is SHA-256 over the modality tag, the declared dimensionality and the
// CBOR encoding of the vector values. Creation time is deliberately excluded:
// byte-identical samples produce byte-identical digests, which makes accidental
// duplicate enrollments visible.
func vectorDigest(vector types.FeatureVector) (string, error) {
	encoded, err := EncodeVector(vector.Values)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(vector.Modality))
	var dim [4]byte
	binary.BigEndian.PutUint32(dim[:], uint32(vector.Dimensionality()))
	h.Write(dim[:])
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EncodeVector serializes feature values with CBOR, the same wire form durable
// stores persist.
func EncodeVector(values []float64) ([]byte, error) {
	encoded, err := cbor.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode feature vector: %w", err)
	}
	return encoded, nil
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(encoded []byte) ([]float64, error) {
	var values []float64
	if err := cbor.Unmarshal(encoded, &values); err != nil {
		return nil, fmt.Errorf("decode feature vector: %w", err)
	}
	return values, nil
}
