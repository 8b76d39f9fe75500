// Package cmd implements the subgrab command line: search a subgrab server,
// keep a local selection and download it.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/subgrab/subgrab/internal/config"
	"github.com/subgrab/subgrab/internal/events"
	"github.com/subgrab/subgrab/internal/selection"
	"github.com/subgrab/subgrab/internal/webclient"
)

// Configuration keys, also readable as SUBGRAB_<KEY> environment variables.
const (
	CfgKeyServer      = "server"
	CfgKeyStore       = "store"
	CfgKeySecurityKey = "key"
	CfgKeyTimeout     = "timeout"
	CfgKeyDailyQuota  = "daily-quota"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v   *viper.Viper
	bus *events.Bus
	now func() time.Time
}

func (a *app) store() *selection.Store {
	return selection.NewStore(a.v.GetString(CfgKeyStore), a.bus)
}

func (a *app) client() *webclient.Client {
	return webclient.New(a.v.GetString(CfgKeyServer), a.v.GetDuration(CfgKeyTimeout))
}

func (a *app) dailyQuota() int {
	if n := a.v.GetInt(CfgKeyDailyQuota); n > 0 {
		return n
	}
	return config.DefaultDailyQuota
}

// printToasts writes every toast to out, errors to errOut.
func (a *app) printToasts(out, errOut io.Writer) {
	a.bus.Subscribe(events.ShowToast, events.ListenerFunc(func(e events.Event) {
		w := out
		if e.Toast.Kind == events.ToastError {
			w = errOut
		}
		fmt.Fprintf(w, "[%s] %s\n", e.Toast.Kind, e.Toast.Message)
	}))
}

// NewRootCmd builds the command tree with its own configuration.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{v: viper.New(), bus: events.NewBus(), now: time.Now})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "subgrab",
		Short: "Search and download subtitles through a subgrab server",
		Long: `subgrab talks to a subgrab server to search OpenSubtitles, keeps a local
selection of subtitle files and downloads it as a single file or a zip archive.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.printToasts(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.String(CfgKeyServer, "http://localhost:4321", "subgrab server URL")
	flags.String(CfgKeyStore, selection.DefaultPath(), "file holding the selection and quota")
	flags.String(CfgKeySecurityKey, "", "download security key")
	flags.Duration(CfgKeyTimeout, 60*time.Second, "request timeout")
	flags.Int(CfgKeyDailyQuota, config.DefaultDailyQuota, "daily download allowance shown once the quota resets")

	a.v.SetEnvPrefix("SUBGRAB")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	cobra.CheckErr(a.v.BindPFlags(flags))

	root.AddCommand(
		newSearchCmd(a),
		newSelectCmd(a),
		newDownloadCmd(a),
		newQuotaCmd(a),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
