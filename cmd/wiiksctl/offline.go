package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/export"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/render"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

type layoutFlags struct {
	policy      string
	rowHeight   float64
	activeHours bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.policy, "policy", string(timetable.PolicyOverlapGroup), "overlap policy: overlap-group or lanes")
	cmd.Flags().Float64Var(&f.rowHeight, "row-height", timetable.DefaultRowHeightPx, "pixel height of one hour row")
	cmd.Flags().BoolVar(&f.activeHours, "active-hours", false, "only show hours that hold activities")
}

func (f *layoutFlags) options() (timetable.Options, error) {
	policy, err := timetable.ParsePolicy(f.policy)
	if err != nil {
		return timetable.Options{}, err
	}
	if f.rowHeight <= 0 {
		return timetable.Options{}, fmt.Errorf("--row-height must be positive")
	}
	return timetable.Options{Policy: policy, RowHeightPx: f.rowHeight, ActiveHoursOnly: f.activeHours}, nil
}

func newLayoutCmd() *cobra.Command {
	var (
		path  string
		flags layoutFlags
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print activity placements as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := loadSchedule(path)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(timetable.LayoutWeek(sched.entries(), opts))
		},
	}
	scheduleFlag(cmd, &path)
	flags.register(cmd)
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		path, output, themePath string
		flags                   layoutFlags
		pngTimeout              time.Duration
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the week as SVG, or PNG when the output ends in .png",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := loadSchedule(path)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			theme := render.DefaultTheme()
			if themePath != "" {
				if theme, err = render.LoadTheme(themePath); err != nil {
					return err
				}
			}

			week := render.Week{
				Title:  sched.Title,
				Layout: timetable.LayoutWeek(sched.entries(), opts),
				Blocks: sched.Blocks,
			}
			var svg bytes.Buffer
			if err := render.SVG(&svg, week, theme); err != nil {
				return err
			}

			data := svg.Bytes()
			if strings.EqualFold(filepath.Ext(output), ".png") {
				width, height := render.Size(week, theme)
				data, err = export.NewPNGRenderer(pngTimeout).Render(commandContext(cmd), svg.Bytes(), width, height)
				if err != nil {
					return err
				}
			}
			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}
	scheduleFlag(cmd, &path)
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&themePath, "theme", "", "YAML theme file")
	cmd.Flags().DurationVar(&pngTimeout, "png-timeout", export.DefaultPNGTimeout, "headless browser timeout for PNG output")
	return cmd
}

func newICSCmd() *cobra.Command {
	var (
		path, output, from, tz string
		weeks                  int
	)
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Export the week as weekly recurring iCalendar events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := loadSchedule(path)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("--tz: %w", err)
			}
			start := time.Now().In(loc)
			if from != "" {
				if start, err = time.ParseInLocation(time.DateOnly, from, loc); err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
				}
			}
			if weeks < 0 {
				return fmt.Errorf("--weeks must not be negative")
			}

			var buf bytes.Buffer
			err = export.ICS(&buf, sched.Blocks, export.ICSOptions{
				Name:     sched.Title,
				From:     start,
				Location: loc,
				Weeks:    weeks,
			})
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, buf.Bytes())
		},
	}
	scheduleFlag(cmd, &path)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&from, "from", "", "first date events may start on (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA time zone the activity times are in")
	cmd.Flags().IntVar(&weeks, "weeks", 0, "number of weekly repetitions, 0 repeats forever")
	return cmd
}

func newAtCmd() *cobra.Command {
	var path, day, at string
	cmd := &cobra.Command{
		Use:   "at",
		Short: "List the activities running at a day and time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := loadSchedule(path)
			if err != nil {
				return err
			}
			d, err := timetable.ParseDay(day)
			if err != nil {
				return err
			}
			clock, err := timetable.ParseClock(at)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			active := timetable.ActiveAt(sched.entries(), d, clock)
			if len(active) == 0 {
				fmt.Fprintf(out, "nothing scheduled on %s at %s\n", d, clock)
				return nil
			}
			for _, e := range active {
				fmt.Fprintf(out, "%s-%s  %s\n", e.Start, e.End, sched.label(e.ID))
			}
			return nil
		},
	}
	scheduleFlag(cmd, &path)
	cmd.Flags().StringVar(&day, "day", "", "weekday name, e.g. Monday")
	cmd.Flags().StringVar(&at, "time", "", "time of day HH:MM")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// commandContext falls back to Background when cobra runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
