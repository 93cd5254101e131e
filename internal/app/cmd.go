package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitoshi/tripplanner/internal/config"
)

// errFeatureDisabled は機能フラグで無効化された機能を呼び出した場合のエラー。
var errFeatureDisabled = errors.New("feature is disabled")

// cli はコマンド間で共有する状態。
type cli struct {
	logOut     io.Writer
	out        io.Writer
	jsonOutput bool

	cfg *config.Config
}

// NewRootCommand はtripplannerのコマンドツリーを構築する。
// logOutはJSONログ、outはコマンドの出力先。
func NewRootCommand(logOut, out io.Writer) *cobra.Command {
	a := &cli{logOut: logOut, out: out}

	root := &cobra.Command{
		Use:   "tripplanner",
		Short: "Travel planner client",
		Long: `tripplanner は旅程・訪問地・天気予報・渡航警告のサービスを扱うクライアントです。

serve で常駐すると、サインイン中のユーザーの渡航警告を定期的に取得し、
状態参照用のHTTPエンドポイントを公開します。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output JSON instead of human-readable text")

	root.AddCommand(
		a.serveCommand(),
		a.migrateCommand(),
		a.healthcheckCommand(),
		a.loginCommand(),
		a.registerCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.verifyEmailCommand(),
		a.itinerariesCommand(),
		a.locationsCommand(),
		a.warningsCommand(),
		a.weatherCommand(),
		a.geocodeCommand(),
	)

	return root
}

// config は設定を1回だけ読み込む。
func (a *cli) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := Init(a.logOut)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

// withContainer は依存関係を構築してfnを実行し、終了後に解放する。
func (a *cli) withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := newContainer(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func (a *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the warning watcher and the status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, runServe)
		},
	}
}

func (a *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}
}

// healthcheckCommand は設定の読み込みを行わない軽量サブコマンド。
func (a *cli) healthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the status server (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = defaultHealthcheckPort
			}
			return runHealthcheck(port)
		},
	}
}

// printJSON はvをインデント付きJSONで出力する。
func (a *cli) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table は表形式出力用のwriterを返す。呼び出し側でFlushする。
func (a *cli) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func requireFeature(enabled bool, name string) error {
	if !enabled {
		return fmt.Errorf("%s: %w", name, errFeatureDisabled)
	}
	return nil
}
