package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/subgrab/subgrab/internal/events"
	"github.com/subgrab/subgrab/internal/models"
)

func newSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "select",
		Aliases: []string{"selection"},
		Short:   "Manage the download selection",
	}
	cmd.AddCommand(
		newSelectListCmd(a),
		newSelectAddCmd(a),
		newSelectRemoveCmd(a),
		newSelectClearCmd(a),
	)
	return cmd
}

func newSelectListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the selected subtitles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := a.store().SelectedSubtitles()
			if len(selected) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No subtitles selected.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE ID\tLANG\tTITLE\tRELEASE\tFILE")
			for _, s := range selected {
				fmt.Fprintf(w, "%d\t%s\t%s (%d)\t%s\t%s\n",
					s.FileID, s.SubtitleInfo.Language, s.SubtitleInfo.Title,
					s.SubtitleInfo.Year, s.SubtitleInfo.Release, s.FileName)
			}
			_ = w.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "%d selected\n", len(selected))
			return nil
		},
	}
}

func newSelectAddCmd(a *app) *cobra.Command {
	var sub models.SelectedSubtitle

	cmd := &cobra.Command{
		Use:   "add <file-id>",
		Short: "Add a file id to the selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			sub.FileID = id
			if err := a.store().AddSelectedSubtitle(sub); err != nil {
				return err
			}
			a.bus.Toast(events.ToastSuccess, "Subtitle added to selection")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sub.FileName, "name", "", "file name")
	f.StringVar(&sub.SubtitleInfo.Title, "title", "", "movie or episode title")
	f.IntVar(&sub.SubtitleInfo.Year, "year", 0, "release year")
	f.StringVar(&sub.SubtitleInfo.Language, "lang", "", "language code")
	f.StringVar(&sub.SubtitleInfo.Release, "release", "", "release name")
	return cmd
}

func newSelectRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <file-id>...",
		Aliases: []string{"rm"},
		Short:   "Remove file ids from the selection",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			for _, arg := range args {
				id, err := parseFileID(arg)
				if err != nil {
					return err
				}
				if err := store.RemoveSelectedSubtitle(id); err != nil {
					return err
				}
			}
			a.bus.Toast(events.ToastInfo, "Subtitle removed from selection")
			return nil
		},
	}
}

func newSelectClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store().ClearSelectedSubtitles(); err != nil {
				return err
			}
			a.bus.Toast(events.ToastInfo, "Selection cleared")
			return nil
		},
	}
}

func parseFileID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return id, nil
}
