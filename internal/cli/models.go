package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and their local state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFILE\tSTATE")
			for _, name := range whisper.ModelNames() {
				model, _ := whisper.LookupModel(name)

				state := "missing"
				if fileExists(filepath.Join(modelDir, model.FileName)) {
					state = "downloaded"
				}

				marker := ""
				if name == app.cfg.Model {
					marker = " (default)"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\n", name, marker, model.FileName, state)
			}
			return w.Flush()
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
