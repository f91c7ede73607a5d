package registry

import (
	"fmt"
	"strings"
)

// Model selects a matching pipeline.
type Model string

const (
	ModelEmbedding    Model = "embedding"
	ModelVerification Model = "verification"
)

// Models lists the pipelines in a stable order.
var Models = []Model{ModelEmbedding, ModelVerification}

// ParseModel parses a request model field; empty selects the embedding pipeline.
func ParseModel(s string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModelEmbedding:
		return ModelEmbedding, nil
	case ModelVerification:
		return ModelVerification, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownModel, s)
}

// Match is the outcome of a recognition. Name is empty when no candidate
// could be compared.
type Match struct {
	Name       string  `json:"name,omitempty"`
	Distance   float64 `json:"distance"`
	Recognized bool    `json:"recognized"`
	Confidence float64 `json:"confidence"`
}

// Similar is a registered identity close to another one.
type Similar struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}
