package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/subgrab/subgrab/internal/events"
	"github.com/subgrab/subgrab/internal/models"
	"github.com/subgrab/subgrab/internal/webclient"
)

func newDownloadCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "download [file-id]...",
		Short: "Download the selection or the given file ids",
		Long: `Downloads the given file ids, or the whole selection when none are given.
A single subtitle is saved as is; several are saved as one zip archive.
The security key comes from --key or SUBGRAB_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := downloadIDs(a, args)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				a.bus.Toast(events.ToastError, "No subtitles selected")
				return errors.New("nothing to download")
			}

			dl, err := a.client().Download(cmd.Context(), ids, a.v.GetString(CfgKeySecurityKey))
			if err != nil {
				a.bus.Toast(events.ToastError, downloadErrorMessage(err))
				return err
			}

			path, err := saveDownload(outDir, dl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			if dl.Summary != nil && dl.Summary.Quota != nil {
				if err := a.store().SetQuotaInfo(models.NewStoredQuota(*dl.Summary.Quota, a.now())); err != nil {
					return err
				}
			}
			a.bus.Toast(events.ToastSuccess, downloadMessage(dl, len(ids)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to save into")
	return cmd
}

func downloadIDs(a *app, args []string) ([]int64, error) {
	if len(args) == 0 {
		selected := a.store().SelectedSubtitles()
		ids := make([]int64, len(selected))
		for i, s := range selected {
			ids[i] = s.FileID
		}
		return ids, nil
	}

	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := parseFileID(arg)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// saveDownload writes the file under dir using only the base name the
// server suggested.
func saveDownload(dir string, dl *webclient.Download) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := filepath.Base(dl.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "subtitles"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, dl.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, nil
}

func downloadMessage(dl *webclient.Download, requested int) string {
	single := strings.HasPrefix(dl.ContentType, "text/plain")
	if dl.Summary == nil {
		if single {
			return "Subtitle downloaded successfully"
		}
		return fmt.Sprintf("Downloaded %d subtitles", requested)
	}
	if single && dl.Summary.Successful == 1 {
		return "Subtitle downloaded successfully"
	}
	return fmt.Sprintf("Downloaded %d/%d subtitles successfully", dl.Summary.Successful, dl.Summary.Total)
}

func downloadErrorMessage(err error) string {
	var respErr *webclient.ResponseError
	if errors.As(err, &respErr) && respErr.Message != "" {
		return respErr.Message
	}
	return "Download failed. Please try again."
}
