package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/registry"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Register every image in a directory under its file name",
	Long: `Register every image in a directory. The file name without extension is
used as the name, so "Jan Novák.jpg" is registered as "Jan Novák".

Files that fail (no face, duplicate name, unreadable image) are reported at
the end and do not stop the import.

Examples:
  face-registry import ./people
  face-registry import ./people --model verification --concurrency 2`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("model", string(registry.ModelEmbedding), "Pipeline: embedding or verification")
	importCmd.Flags().Int("concurrency", constants.DefaultImportConcurrency, "Number of parallel registrations")
}

// importFailure is one file that could not be registered.
type importFailure struct {
	file string
	err  error
}

// listImageFiles returns the image files directly inside dir, sorted by name.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// nameFromFile returns the file name without directory and extension.
func nameFromFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runImport(cmd *cobra.Command, args []string) error {
	model := mustGetString(cmd, "model")
	concurrency := max(1, mustGetInt(cmd, "concurrency"))

	files, err := listImageFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No image files found")
		return nil
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Registering faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures []importFailure
	)
	sem := make(chan struct{}, concurrency)

	for _, file := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := importFile(ctx, a.registry, path, model)
			mu.Lock()
			if err != nil {
				failures = append(failures, importFailure{file: path, err: err})
			}
			mu.Unlock()
			bar.Add(1)
		}(file)
	}

	wg.Wait()
	fmt.Println()

	fmt.Printf("\nCompleted: %d registered, %d failed\n", len(files)-len(failures), len(failures))
	if len(failures) > 0 {
		slices.SortFunc(failures, func(a, b importFailure) int { return strings.Compare(a.file, b.file) })
		fmt.Println("Failures:")
		for _, f := range failures {
			fmt.Printf("  - %s: %v\n", filepath.Base(f.file), f.err)
		}
	}
	return nil
}

func importFile(ctx context.Context, svc *registry.Service, path, model string) error {
	image, err := readImageFile(path)
	if err != nil {
		return err
	}
	_, err = svc.Register(ctx, registry.RegisterRequest{
		Name:  nameFromFile(path),
		Image: image,
		Model: model,
	})
	return err
}
