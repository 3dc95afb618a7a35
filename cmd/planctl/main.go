// Package main is planctl, an offline tool for inspecting occupancy grids and plans.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"arena-nav/models"
	"arena-nav/services"
)

const (
	// Flags.
	flagPreset   = "preset"
	flagCellSize = "cell-size"
	flagRadius   = "radius"
	flagFrom     = "from"
	flagTo       = "to"
	flagRaw      = "raw"
	flagMaxTicks = "max-ticks"
	flagDebug    = "debug"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	logger := zap.NewNop().Sugar()

	return &cli.App{
		Name:  "planctl",
		Usage: "inspect arenas and plans without running the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagPreset,
				Value: services.PresetStage,
				Usage: "arena preset (stage, open, random)",
			},
			&cli.Float64Flag{
				Name:  flagCellSize,
				Value: 100,
				Usage: "grid cell size in mm",
			},
			&cli.Float64Flag{
				Name:  flagRadius,
				Value: 250,
				Usage: "robot radius in mm",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				l, err := services.NewLogger("debug", "console")
				if err != nil {
					return err
				}
				logger = l
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "grid",
				Usage: "print the inflated occupancy grid ('#' wall, '+' inflation, '.' free)",
				Action: func(c *cli.Context) error {
					planner, err := newPlanner(c, logger)
					if err != nil {
						return err
					}
					grid := planner.Grid()
					fmt.Fprintf(c.App.Writer, "%dx%d cells, inflation %d, %d free\n",
						grid.Cols(), grid.Rows(), grid.InflationRadius(), grid.FreeCount())
					fmt.Fprint(c.App.Writer, grid.String())
					return nil
				},
			},
			{
				Name:      "plan",
				Usage:     "plan a path between two points",
				UsageText: "planctl plan --from 4000,500 --to 500,1500",
				Flags:     pointFlags(&cli.BoolFlag{Name: flagRaw, Usage: "print the grid path instead of the smoothed one"}),
				Action: func(c *cli.Context) error {
					planner, err := newPlanner(c, logger)
					if err != nil {
						return err
					}
					from, to, err := endpoints(c)
					if err != nil {
						return err
					}
					plan, err := planner.Plan(context.Background(), from, to)
					if err != nil {
						return err
					}

					points := plan.Points
					if c.Bool(flagRaw) {
						points = plan.Raw
					}
					for i, p := range points {
						fmt.Fprintf(c.App.Writer, "%4d  %8.1f  %8.1f\n", i, p.X, p.Y)
					}
					fmt.Fprintf(c.App.Writer, "length %.1fmm, grid cost %.2f, min clearance %.1fmm, smoothed %t, took %v\n",
						plan.Length, plan.GridCost, plan.Clearance, plan.Smoothed, plan.Took)
					return nil
				},
			},
			{
				Name:  "simulate",
				Usage: "plan and tick the controller until it arrives",
				Flags: pointFlags(&cli.IntFlag{Name: flagMaxTicks, Value: 100000, Usage: "give up after this many ticks"}),
				Action: func(c *cli.Context) error {
					planner, err := newPlanner(c, logger)
					if err != nil {
						return err
					}
					from, to, err := endpoints(c)
					if err != nil {
						return err
					}

					ctrl := services.NewController(services.DefaultControllerConfig(),
						models.Pose{X: from.X, Y: from.Y}, logger, services.WithPlanner(planner))
					plan, err := ctrl.SetDestination(context.Background(), to)
					if err != nil {
						return err
					}

					ticks := 0
					for ctrl.State() != models.StateArrived {
						if ticks >= c.Int(flagMaxTicks) {
							return errors.Errorf("not arrived after %d ticks", ticks)
						}
						ctrl.Step()
						ticks++
					}
					pose := ctrl.Pose()
					interval := ctrl.Config().TickInterval
					fmt.Fprintf(c.App.Writer, "arrived at (%.1f, %.1f) heading %.3f after %d ticks (%v), path %.1fmm\n",
						pose.X, pose.Y, pose.Heading, ticks, interval*time.Duration(ticks), plan.Length)
					return nil
				},
			},
		},
	}
}

// pointFlags - plan/simulate 공통 플래그 (--from, --to) + 추가 플래그
func pointFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.Float64SliceFlag{
			Name:     flagFrom,
			Usage:    "start point as x,y in mm",
			Required: true,
		},
		&cli.Float64SliceFlag{
			Name:     flagTo,
			Usage:    "destination as x,y in mm",
			Required: true,
		},
	}, extra...)
}

func endpoints(c *cli.Context) (models.Point, models.Point, error) {
	from, err := parsePoint(c.Float64Slice(flagFrom))
	if err != nil {
		return models.Point{}, models.Point{}, errors.Wrap(err, flagFrom)
	}
	to, err := parsePoint(c.Float64Slice(flagTo))
	if err != nil {
		return models.Point{}, models.Point{}, errors.Wrap(err, flagTo)
	}
	return from, to, nil
}

func parsePoint(xy []float64) (models.Point, error) {
	if len(xy) != 2 {
		return models.Point{}, errors.Errorf("expected x,y but got %d values", len(xy))
	}
	return models.Point{X: xy[0], Y: xy[1]}, nil
}

// newPlanner - 전역 플래그로 경기장을 만들고 플래너 활성화
func newPlanner(c *cli.Context, logger *zap.SugaredLogger) (*services.Planner, error) {
	cfg := services.DefaultPlannerConfig()
	cfg.CellSize = c.Float64(flagCellSize)

	store := services.NewArenaStore(cfg, logger, nil)
	arena, err := store.Preset(c.String(flagPreset), c.Float64(flagRadius))
	if err != nil {
		return nil, err
	}
	return store.Activate(arena)
}
