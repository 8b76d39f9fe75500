package cmd

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/subgrab/subgrab/internal/events"
	"github.com/subgrab/subgrab/internal/models"
	"github.com/subgrab/subgrab/internal/selection"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		params models.SearchParams
		pick   []int64
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search subtitles",
		Long: `Searches subtitles through the server. At least one of --query, --imdb or
--tmdb is required. Files listed with --select are added to the selection.

Examples:
  subgrab search --query "The Matrix" --lang en
  subgrab search --imdb tt0133093 --select 1954232`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client().Search(cmd.Context(), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Data) == 0 {
				fmt.Fprintln(out, "No subtitles found matching the criteria.")
			} else {
				printResults(cmd, resp, a.store())
			}
			a.bus.Publish(events.Event{Kind: events.SearchCompleted, Results: len(resp.Data)})

			return selectFromResults(a, resp, pick)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&params.Query, "query", "q", "", "title to search for")
	f.StringVar(&params.IMDbID, "imdb", "", "IMDb id, e.g. tt0133093")
	f.StringVar(&params.TMDBID, "tmdb", "", "TMDB id")
	f.StringVarP(&params.Languages, "lang", "l", "", "comma-separated language codes")
	f.IntVar(&params.Page, "page", 0, "result page")
	f.Int64SliceVar(&pick, "select", nil, "file ids from the results to add to the selection")
	return cmd
}

func printResults(cmd *cobra.Command, resp *models.SearchResponse, store *selection.Store) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tFILE ID\tLANG\tTITLE\tRELEASE\tDOWNLOADS\tFILE")
	for _, sub := range resp.Data {
		attrs := sub.Attributes
		for _, file := range attrs.Files {
			mark := ""
			if store.IsSubtitleSelected(file.FileID) {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s (%d)\t%s\t%d\t%s\n",
				mark, file.FileID, attrs.Language,
				attrs.FeatureDetails.Title, attrs.FeatureDetails.Year,
				attrs.Release, attrs.DownloadCount, file.FileName)
		}
	}
	_ = w.Flush()

	if resp.TotalPages > 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d results)\n", resp.Page, resp.TotalPages, resp.TotalCount)
	}
}

// selectFromResults adds the picked file ids found in resp to the selection.
func selectFromResults(a *app, resp *models.SearchResponse, pick []int64) error {
	if len(pick) == 0 {
		return nil
	}

	store := a.store()
	var found []int64
	for _, sub := range resp.Data {
		for _, file := range sub.Attributes.Files {
			if !slices.Contains(pick, file.FileID) {
				continue
			}
			if err := store.AddSelectedSubtitle(models.SelectionFromSearch(sub, file)); err != nil {
				return err
			}
			found = append(found, file.FileID)
		}
	}

	for _, id := range pick {
		if !slices.Contains(found, id) {
			a.bus.Toast(events.ToastError, fmt.Sprintf("File %d is not part of these results", id))
		}
	}
	if len(found) > 0 {
		a.bus.Toast(events.ToastSuccess, fmt.Sprintf("Added %d subtitle(s) to selection", len(found)))
	}
	return nil
}
