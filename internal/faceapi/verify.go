package faceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// verifyResponse represents the response from the verification endpoint
type verifyResponse struct {
	Verified  bool    `json:"verified"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
	Model     string  `json:"model"`
}

// VerifyImages compares two images and returns the model's distance between the faces in them.
func (c *Client) VerifyImages(ctx context.Context, img1, img2 []byte) (float64, error) {
	body, err := c.postMultipartImages(ctx, "/verify",
		imagePart{field: "img1", data: img1},
		imagePart{field: "img2", data: img2},
	)
	if err != nil {
		return 0, err
	}

	var verResp verifyResponse
	if err := json.Unmarshal(body, &verResp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	return verResp.Distance, nil
}

// Verify compares the query image with the reference image stored at referencePath.
func (c *Client) Verify(ctx context.Context, query []byte, referencePath string) (float64, error) {
	reference, err := os.ReadFile(referencePath) //nolint:gosec // path comes from the registry store
	if err != nil {
		return 0, fmt.Errorf("reading reference image: %w", err)
	}
	return c.VerifyImages(ctx, query, reference)
}
