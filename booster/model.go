package booster

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Booster is a trained gradient-boosted tree model. Tree outputs are
// already scaled by the learning rate, so a prediction is the base score
// plus the sum of tree outputs.
type Booster struct {
	BaseScore   float64
	NumFeatures int
	Trees       []*Tree
	// Cuts are the per-feature quantile cut points the model was trained
	// against, kept so raw feature vectors route the same way binned rows
	// did during training.
	Cuts [][]float32
}

// Predict scores a raw feature vector.
func (b *Booster) Predict(features []float32) (float64, error) {
	if len(features) != b.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", b.NumFeatures, len(features))
	}

	out := b.BaseScore
	for _, tree := range b.Trees {
		out += tree.Predict(features)
	}
	return out, nil
}

// SaveModel serializes the model to a local file.
func (b *Booster) SaveModel(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(b); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return nil
}

// LoadModel reads a model previously written by SaveModel.
func LoadModel(path string) (*Booster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	model := &Booster{}
	if err := gob.NewDecoder(file).Decode(model); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	return model, nil
}
