package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-registry/internal/registry"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage registered faces",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered names across both pipelines",
	Args:  cobra.NoArgs,
	RunE:  runFacesList,
}

var facesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a name from both pipelines",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesDelete,
}

var facesRegisterCmd = &cobra.Command{
	Use:   "register <name> <image-file>",
	Short: "Register a face from an image file",
	Long: `Register a face from an image file.

Examples:
  # Register into the embedding pipeline
  face-registry faces register "Jan Novák" jan.jpg

  # Register a reference image for the verification pipeline
  face-registry faces register "Jan Novák" jan.jpg --model verification`,
	Args: cobra.ExactArgs(2),
	RunE: runFacesRegister,
}

var facesRecognizeCmd = &cobra.Command{
	Use:   "recognize <image-file>",
	Short: "Recognize the face in an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesRecognize,
}

var facesSimilarCmd = &cobra.Command{
	Use:   "similar <name>",
	Short: "Show registered faces whose embeddings are closest to a name",
	Long: `Show registered faces whose embeddings are closest to a name.
Useful to spot the same person registered under two names.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacesSimilar,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd, facesDeleteCmd, facesRegisterCmd, facesRecognizeCmd, facesSimilarCmd)

	facesListCmd.Flags().Bool("json", false, "Output as JSON")
	facesRegisterCmd.Flags().String("model", string(registry.ModelEmbedding), "Pipeline: embedding or verification")
	facesRecognizeCmd.Flags().String("model", string(registry.ModelEmbedding), "Pipeline: embedding or verification")
	facesRecognizeCmd.Flags().Bool("json", false, "Output as JSON")
	facesSimilarCmd.Flags().Int("k", registry.DefaultSimilarK, "Number of similar faces to show")
}

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// readImageFile returns the file content base64 encoded, as the HTTP API expects it.
func readImageFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func runFacesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	names, err := a.registry.List(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		if names == nil {
			names = []string{}
		}
		return outputJSON(map[string]any{"faces": names, "count": len(names)})
	}
	for _, name := range names {
		fmt.Println(name)
	}
	fmt.Printf("\n%d registered faces\n", len(names))
	return nil
}

func runFacesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.registry.Delete(ctx, args[0]); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("face %q not found", args[0])
		}
		return err
	}
	fmt.Printf("Face %s deleted successfully\n", args[0])
	return nil
}

func runFacesRegister(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	image, err := readImageFile(args[1])
	if err != nil {
		return err
	}

	rec, err := a.registry.Register(ctx, registry.RegisterRequest{
		Name:  args[0],
		Image: image,
		Model: mustGetString(cmd, "model"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Face registered successfully for %s\n", rec.Name)
	fmt.Printf("  ID:    %s\n", rec.ID)
	fmt.Printf("  Image: %s\n", rec.ImagePath)
	return nil
}

func runFacesRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	image, err := readImageFile(args[0])
	if err != nil {
		return err
	}

	match, err := a.registry.Recognize(ctx, registry.RecognizeRequest{
		Image: image,
		Model: mustGetString(cmd, "model"),
	})
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(match)
	}
	if !match.Recognized {
		fmt.Println("Face not recognized")
		if match.Name != "" {
			fmt.Printf("  Closest: %s (distance %.4f)\n", match.Name, match.Distance)
		}
		return nil
	}
	fmt.Printf("Face recognized as %s\n", match.Name)
	fmt.Printf("  Distance:   %.4f\n", match.Distance)
	fmt.Printf("  Confidence: %.4f\n", match.Confidence)
	return nil
}

func runFacesSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	similar, err := a.registry.Similar(ctx, args[0], mustGetInt(cmd, "k"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("face %q has no embedding registered", args[0])
		}
		return err
	}

	if len(similar) == 0 {
		fmt.Println("No other faces registered")
		return nil
	}
	fmt.Printf("Faces closest to %s:\n", args[0])
	for i, s := range similar {
		fmt.Printf("  %2d. %-30s %.4f\n", i+1, s.Name, s.Distance)
	}
	return nil
}
