package uploads

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
)

// ModelNotLoaded is the label given when no model could be read.
const ModelNotLoaded = "Model not loaded"

// DefaultLabels are used when the model file does not list its own.
var DefaultLabels = []string{"Pneumonia", "Healthy", "Tuberculosis", "COVID-19"}

// Classifier labels an image.
type Classifier interface {
	Predict(ctx context.Context, image []byte) (string, error)
}

// PlaceholderClassifier stands in for a real model: it picks one of the
// model's labels at random.
type PlaceholderClassifier struct {
	labels []string
}

type modelFile struct {
	Labels []string `json:"labels"`
}

// LoadPlaceholderClassifier reads the JSON model at path. A missing, empty or
// unparsable model yields a classifier that always answers ModelNotLoaded,
// along with the error that explains why.
func LoadPlaceholderClassifier(path string) (*PlaceholderClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &PlaceholderClassifier{}, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &PlaceholderClassifier{}, err
	}
	if len(raw) == 0 {
		return &PlaceholderClassifier{}, nil
	}

	var m modelFile
	_ = json.Unmarshal(data, &m)
	labels := m.Labels
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return &PlaceholderClassifier{labels: labels}, nil
}

// Loaded reports whether a model was read.
func (c *PlaceholderClassifier) Loaded() bool { return len(c.labels) > 0 }

func (c *PlaceholderClassifier) Predict(ctx context.Context, _ []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !c.Loaded() {
		return ModelNotLoaded, nil
	}
	return c.labels[rand.IntN(len(c.labels))], nil
}
