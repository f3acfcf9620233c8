package card

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"

	cliapp "animebingo.dev/backend-next/cmd/app/cli"
	"animebingo.dev/backend-next/internal/app/appconfig"
	"animebingo.dev/backend-next/internal/model"
	"animebingo.dev/backend-next/internal/pkg/bangumi"
	"animebingo.dev/backend-next/internal/pkg/bearer"
	"animebingo.dev/backend-next/internal/service"
	"animebingo.dev/backend-next/internal/util/cardutil"
	"animebingo.dev/backend-next/internal/util/rekuest"
)

type CommandDeps struct {
	fx.In

	Config            *appconfig.Config
	Client            *bangumi.Client
	CollectionService *service.Collection
	PopularityService *service.Popularity
}

func Command() *cli.Command {
	return &cli.Command{
		Name:  "card",
		Usage: "build and print the bingo card of a user without storing it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "upstream username or numeric id", Required: true},
			&cli.StringFlag{Name: "token", Usage: "upstream access token, defaults to the configured one", EnvVars: []string{"BINGO_CARD_TOKEN"}},
			&cli.IntFlag{Name: "window-end", Usage: "newest year of the card, 0 for the current year"},
			&cli.IntFlag{Name: "window-size", Usage: "number of years on the card, 0 for the configured size"},
			&cli.BoolFlag{Name: "watched-only", Usage: "only print watched cells"},
		},
		Action: func(c *cli.Context) error {
			var deps CommandDeps
			if err := cliapp.Start(fx.Populate(&deps)); err != nil {
				return err
			}
			return run(c, deps)
		},
	}
}

func run(c *cli.Context, deps CommandDeps) error {
	username := c.String("user")
	if err := rekuest.Validate.Var(username, "required,max=64,username"); err != nil {
		return cli.Exit("invalid user: "+err.Error(), 2)
	}

	end, size := deps.Config.WindowEnd, deps.Config.WindowSize
	if c.IsSet("window-end") {
		end = c.Int("window-end")
	}
	if c.Int("window-size") > 0 {
		size = c.Int("window-size")
	}
	window := model.WindowEndingAt(end, size, time.Now())
	if err := window.Validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	credential := bearer.Or(null.NewString(c.String("token"), c.String("token") != ""), deps.Config.BangumiAccessToken)

	var (
		info    *model.UserInfo
		fetched *model.CollectionFetch
		matrix  *model.PopularityMatrix
	)
	eg, ctx := errgroup.WithContext(c.Context)
	eg.Go(func() error {
		var err error
		info, err = deps.Client.User(ctx, username, credential)
		return err
	})
	eg.Go(func() error {
		var err error
		fetched, err = deps.CollectionService.FetchWatchedIDs(ctx, username, credential)
		return err
	})
	eg.Go(func() error {
		var err error
		matrix, err = deps.PopularityService.BuildMatrix(ctx, model.FetchConfig{Credential: credential, Window: window})
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	annotated := cardutil.Aggregate(matrix, fetched.IDs)
	return render(os.Stdout, info, annotated, renderOptions{
		WatchedOnly:   c.Bool("watched-only"),
		FailedOffsets: fetched.FailedOffsets,
		DegradedYears: matrix.DegradedYears,
	})
}
