package faceapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Detection errors returned by Embed.
var (
	ErrNoFace        = errors.New("no face detected in the image")
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImages(ctx, "/embed/face", imagePart{field: "file", data: imageData})
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Older servers omit faces_count.
	if faceResp.FacesCount == 0 {
		faceResp.FacesCount = len(faceResp.Faces)
	}

	return &faceResp, nil
}

// Detect returns the number of faces found in the image.
func (c *Client) Detect(ctx context.Context, imageData []byte) (int, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return 0, err
	}
	return resp.FacesCount, nil
}

// Embed returns the embedding of the single face in the image.
// It fails with ErrNoFace or ErrMultipleFaces unless exactly one face is found.
func (c *Client) Embed(ctx context.Context, imageData []byte) ([]float64, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.FacesCount == 0:
		return nil, ErrNoFace
	case resp.FacesCount > 1:
		return nil, ErrMultipleFaces
	}

	if len(resp.Faces) == 0 || len(resp.Faces[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	return resp.Faces[0].Embedding, nil
}
