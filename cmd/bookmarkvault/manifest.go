package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"bookmarkvault/pkg/manifest"
	"bookmarkvault/pkg/metadata"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/render"
	"bookmarkvault/pkg/ui"
)

var (
	// Manifest command flags
	listJSON     bool
	cleanOrphans bool
)

// manifestCmd represents the manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect and maintain the archive manifest",
	Long: `The manifest records every bookmark that has been fully archived.
A bookmark is only added after its page has been written, so every entry
should point at a complete artifact.`,
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived bookmarks, newest first",
	Args:  cobra.NoArgs,
	RunE:  runManifestList,
}

var manifestVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every manifest entry has a valid artifact",
	Long: `Check every manifest entry against its artifact on disk.

An artifact is reported when it is missing, empty, or references remote
content. With --clean-orphans, metadata files whose page no longer exists
are removed.`,
	Args: cobra.NoArgs,
	RunE: runManifestVerify,
}

var manifestImportCmd = &cobra.Command{
	Use:   "import <ids-file>",
	Short: "Import a legacy JSON list of archived bookmark ids",
	Long: `Import a JSON array of bookmark ids saved by an older archiver.

Only ids whose bookmark_<id>.html page exists in the archive are recorded.`,
	Example: `  bookmarkvault manifest import saved_bookmarks.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runManifestImport,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestListCmd)
	manifestCmd.AddCommand(manifestVerifyCmd)
	manifestCmd.AddCommand(manifestImportCmd)

	manifestListCmd.Flags().BoolVar(&listJSON, "json", false, "print entries as JSON lines")
	manifestVerifyCmd.Flags().BoolVar(&cleanOrphans, "clean-orphans", false, "remove metadata without a page")
}

func runManifestList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	entries := slices.Collect(store.All())
	slices.SortFunc(entries, func(a, b models.ManifestEntry) int {
		return b.ArchivedAt.Compare(a.ArchivedAt)
	})

	out := cmd.OutOrStdout()
	if listJSON {
		enc := json.NewEncoder(out)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%-20s %s", e.ID, e.ArchivedAt.Local().Format(time.DateTime))
		if meta, err := metadata.Load(cfg.Archive.RootDir, e.ID); err == nil {
			line += fmt.Sprintf("  @%-15s %s", meta.Author.Username, meta.Snippet(60))
		}
		fmt.Fprintln(out, line)
	}
	ui.PrintInfo("Archived", fmt.Sprintf("%d", len(entries)))
	return nil
}

func runManifestVerify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	problems := manifest.Verify(store, cfg.Archive.RootDir, render.VerifyArtifact)
	for _, p := range problems {
		ui.PrintWarning(p.ID, p.Reason)
	}

	if cleanOrphans {
		removed, err := metadata.CleanOrphaned(cfg.Archive.RootDir)
		if err != nil {
			return err
		}
		if removed > 0 {
			ui.PrintInfo("Orphaned metadata removed", fmt.Sprintf("%d", removed))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d of %d artifacts failed verification", len(problems), store.Len())
	}
	ui.PrintSuccess(fmt.Sprintf("All %d artifacts verified", store.Len()))
	return nil
}

func runManifestImport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := manifest.ImportLegacy(cmd.Context(), store, cfg.Archive.RootDir, args[0])
	if err != nil {
		return err
	}

	ui.PrintInfo("Imported", fmt.Sprintf("%d", res.Imported))
	ui.PrintInfo("Already present", fmt.Sprintf("%d", res.Present))
	if len(res.Missing) > 0 {
		ui.PrintWarning(fmt.Sprintf("%d ids have no page in the archive and were skipped", len(res.Missing)))
		log.DebugWithFields("Legacy ids without artifact", map[string]interface{}{
			"ids": res.Missing,
		})
	}
	return nil
}
