package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage persisted source faces",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted source faces",
	Args:  cobra.NoArgs,
	RunE:  runFacesList,
}

var facesDeleteCmd = &cobra.Command{
	Use:   "delete <label>",
	Short: "Delete a persisted source face",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesDelete,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd)
	facesCmd.AddCommand(facesDeleteCmd)

	facesListCmd.Flags().Bool("json", false, "Output as JSON")
}

// faceInfo is the listing form of a stored face.
type faceInfo struct {
	Label     string    `json:"label"`
	Model     string    `json:"model"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}

func runFacesList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	store, closer, err := requireFaceStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	faces, err := store.ListFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list faces: %w", err)
	}

	if mustGetBool(cmd, "json") {
		infos := make([]faceInfo, len(faces))
		for i, f := range faces {
			infos[i] = faceInfo{Label: f.Label, Model: f.Model, Dim: f.Dim, CreatedAt: f.CreatedAt}
		}
		return outputJSON(infos)
	}

	if len(faces) == 0 {
		fmt.Println("No faces stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tMODEL\tDIM\tCREATED")
	for _, f := range faces {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.Label, f.Model, f.Dim, f.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runFacesDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()

	store, closer, err := requireFaceStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	deleted, err := store.DeleteFace(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to delete face: %w", err)
	}
	if !deleted {
		return fmt.Errorf("face %q not found", args[0])
	}
	fmt.Printf("Deleted face %s\n", args[0])
	return nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
