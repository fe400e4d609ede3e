package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/eq3-bridge/internal/bridges/eq3"
)

func newTempCmd(s *session) *cobra.Command {
	var target float64
	cmd := &cobra.Command{
		Use:   "temp",
		Short: "Gets or sets the target temperature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printTemp(cmd.OutOrStdout(), s.dev.State())
			if !cmd.Flags().Changed("target") {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting target temp: %.1f\n", target)
			return s.dev.SetTargetTemperature(cmd.Context(), target)
		},
	}
	cmd.Flags().Float64Var(&target, "target", 0, "Target temperature in °C (4.5 off, 30 on)")
	return cmd
}

func newModeCmd(s *session) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Gets or sets the active mode",
		Long: `Gets or sets the active mode.

Modes are given by name or number: closed (0), open (1), auto (2),
manual (3), away (4), boost (5).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printMode(cmd.OutOrStdout(), s.dev.State())
			if target == "" {
				return nil
			}
			mode, err := eq3.ParseMode(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting mode: %s\n", mode)
			return s.dev.SetMode(cmd.Context(), mode)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Mode to switch to")
	return cmd
}

func newBoostCmd(s *session) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "boost",
		Short: "Gets or sets the boost mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printBoost(cmd.OutOrStdout(), s.dev.State())
			if target == "" {
				return nil
			}
			on, err := eq3.ParseOnOff(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting boost: %t\n", on)
			return s.dev.SetBoost(cmd.Context(), on)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "on or off")
	return cmd
}

func newValveStateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "valve-state",
		Short: "Gets the state of the valve",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printValve(cmd.OutOrStdout(), s.dev.State())
		},
	}
}

func newLockedCmd(s *session) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "locked",
		Short: "Gets or sets the lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printLocked(cmd.OutOrStdout(), s.dev.State())
			if target == "" {
				return nil
			}
			locked, err := eq3.ParseOnOff(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting lock: %t\n", locked)
			return s.dev.SetLocked(cmd.Context(), locked)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "on or off")
	return cmd
}

func newLowBatteryCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "low-battery",
		Short: "Gets the low battery status",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printLowBattery(cmd.OutOrStdout(), s.dev.State())
		},
	}
}

func newWindowOpenCmd(s *session) *cobra.Command {
	var (
		temp    float64
		minutes float64
	)
	cmd := &cobra.Command{
		Use:   "window-open",
		Short: "Gets and sets the window open settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printWindowOpen(cmd.OutOrStdout(), s.dev.State())
			if !cmd.Flags().Changed("temp") || !cmd.Flags().Changed("duration") {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting window open conf, temp: %.1f duration: %g min\n", temp, minutes)
			return s.dev.SetWindowOpen(cmd.Context(), temp, time.Duration(minutes*float64(time.Minute)))
		},
	}
	cmd.Flags().Float64Var(&temp, "temp", 0, "Temperature held while the window is open")
	cmd.Flags().Float64Var(&minutes, "duration", 0, "Minutes to hold it, in 5 minute steps up to 60")
	return cmd
}

func newPresetsCmd(s *session) *cobra.Command {
	var comfort, eco float64
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Gets or sets the preset temperatures for auto mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printPresets(cmd.OutOrStdout(), s.dev.State())
			if !cmd.Flags().Changed("comfort") || !cmd.Flags().Changed("eco") {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting presets: comfort %.1f, eco %.1f\n", comfort, eco)
			return s.dev.SetPresets(cmd.Context(), comfort, eco)
		},
	}
	cmd.Flags().Float64Var(&comfort, "comfort", 0, "Comfort temperature")
	cmd.Flags().Float64Var(&eco, "eco", 0, "Eco temperature")
	return cmd
}

func newScheduleCmd(s *session) *cobra.Command {
	var day, set string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Gets or sets the weekly program",
		Long: `Gets the weekly program, or one day of it with --day.

--set writes the program of --day. It lists TEMP@HH:MM entries: the first
is the base temperature and when it ends, each further entry a period.

  eq3cli schedule --day mon --set 17@06:00,21@22:00,17@24:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			days := allDays()
			if day != "" {
				d, err := eq3.ParseWeekday(day)
				if err != nil {
					return err
				}
				days = []eq3.Weekday{d}
			}

			if set != "" {
				if day == "" {
					return fmt.Errorf("--set requires --day")
				}
				sched, err := parseScheduleSpec(days[0], set)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Setting schedule for %s\n", days[0])
				if err := s.dev.SetSchedule(cmd.Context(), sched); err != nil {
					return err
				}
			}

			for _, d := range days {
				if err := s.dev.QuerySchedule(cmd.Context(), d); err != nil {
					return err
				}
			}
			printSchedule(cmd.OutOrStdout(), s.dev.State(), days)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Day name (mon) or number (0 is saturday)")
	cmd.Flags().StringVar(&set, "set", "", "Program to write for --day")
	return cmd
}

func newOffsetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "offset [value]",
		Short: "Gets or sets the temperature offset [-3.5, 3.5]",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printOffset(cmd.OutOrStdout(), s.dev.State())
			if len(args) == 0 {
				return nil
			}
			offset, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("offset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting the offset to %.1f\n", offset)
			return s.dev.SetOffset(cmd.Context(), offset)
		},
	}
}

func newAwayCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "away [end] [temperature]",
		Short: "Enables or disables the away mode",
		Long: `Enables away mode until end ("2006-01-02 15:04" or RFC 3339) at the
given temperature. Without arguments away mode is disabled.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Disabling away mode")
				return s.dev.DisableAway(cmd.Context())
			}

			end, err := eq3.ParseAwayEnd(args[0], time.Local)
			if err != nil {
				return err
			}
			var temp float64
			if len(args) == 2 {
				if temp, err = strconv.ParseFloat(args[1], 64); err != nil {
					return fmt.Errorf("temperature: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting away until %s, temperature: %.1f\n", end.Format("2006-01-02 15:04"), temp)
			return s.dev.SetAway(cmd.Context(), end, temp)
		},
	}
}

func newDeviceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Displays basic device information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.dev.QueryID(cmd.Context()); err != nil {
				return err
			}
			info := s.dev.State().DeviceInfo
			if info == nil {
				return fmt.Errorf("%s did not answer the id query", s.dev.Address())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Firmware version: %d\n", info.FirmwareVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "Device serial:    %s\n", info.Serial)
			return nil
		},
	}
}

func newStateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Prints out all available information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runState(cmd, s)
		},
	}
}

func runState(cmd *cobra.Command, s *session) error {
	w := cmd.OutOrStdout()
	st := s.dev.State()

	fmt.Fprintln(w, s.dev.String())
	printLocked(w, st)
	printLowBattery(w, st)
	printWindowOpen(w, st)
	printBoost(w, st)
	printTemp(w, st)
	printPresets(w, st)
	printOffset(w, st)
	printMode(w, st)
	printValve(w, st)
	return nil
}

func printTemp(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Current target temp: %.1f\n", st.TargetTemperature)
}

func printMode(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Current mode: %s\n", st.ModeReadable())
}

func printBoost(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Boost: %t\n", st.Boost())
}

func printValve(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Valve: %d%%\n", st.Valve)
}

func printLocked(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Locked: %t\n", st.Locked())
}

func printLowBattery(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Battery low: %t\n", st.LowBattery())
}

func printWindowOpen(w io.Writer, st eq3.State) {
	fmt.Fprintf(w, "Window open: %t\n", st.WindowOpen())
	if p := st.Presets; p != nil {
		fmt.Fprintf(w, "Window open temp: %.1f\n", p.WindowOpenTemperature)
		fmt.Fprintf(w, "Window open time: %s\n", p.WindowOpenTime)
	}
}

func printPresets(w io.Writer, st eq3.State) {
	if p := st.Presets; p != nil {
		fmt.Fprintf(w, "Current comfort temp: %.1f\n", p.ComfortTemperature)
		fmt.Fprintf(w, "Current eco temp: %.1f\n", p.EcoTemperature)
	}
}

func printOffset(w io.Writer, st eq3.State) {
	if p := st.Presets; p != nil {
		fmt.Fprintf(w, "Current temp offset: %.1f\n", p.Offset)
	}
}

func printSchedule(w io.Writer, st eq3.State, days []eq3.Weekday) {
	for _, d := range days {
		sched, ok := st.Schedule[d]
		if !ok {
			fmt.Fprintf(w, "Day %s: no answer\n", d)
			continue
		}
		fmt.Fprintf(w, "Day %s, base temp: %.1f\n", d, sched.BaseTemperature)
		from := eq3.ScheduleTime{}
		fmt.Fprintf(w, "\t[%s-%s] %.1f\n", from, sched.NextChangeAt, sched.BaseTemperature)
		from = sched.NextChangeAt
		for _, p := range sched.Periods {
			fmt.Fprintf(w, "\t[%s-%s] %.1f\n", from, p.NextChangeAt, p.Temperature)
			from = p.NextChangeAt
		}
	}
}

func allDays() []eq3.Weekday {
	days := make([]eq3.Weekday, 0, eq3.DaysPerWeek)
	for d := eq3.Weekday(0); d < eq3.DaysPerWeek; d++ {
		days = append(days, d)
	}
	return days
}

// parseScheduleSpec parses "17@06:00,21@22:00,17@24:00" into the program
// of day.
func parseScheduleSpec(day eq3.Weekday, spec string) (eq3.ScheduleDay, error) {
	entries := strings.Split(spec, ",")
	sched := eq3.ScheduleDay{Day: day}
	for i, entry := range entries {
		tempStr, untilStr, ok := strings.Cut(strings.TrimSpace(entry), "@")
		if !ok {
			return eq3.ScheduleDay{}, fmt.Errorf("schedule entry %q: want TEMP@HH:MM", entry)
		}
		temp, err := strconv.ParseFloat(tempStr, 64)
		if err != nil {
			return eq3.ScheduleDay{}, fmt.Errorf("schedule entry %q: %w", entry, err)
		}
		until, err := eq3.ParseScheduleTime(untilStr)
		if err != nil {
			return eq3.ScheduleDay{}, err
		}
		if i == 0 {
			sched.BaseTemperature = temp
			sched.NextChangeAt = until
			continue
		}
		sched.Periods = append(sched.Periods, eq3.SchedulePeriod{Temperature: temp, NextChangeAt: until})
	}
	return sched, nil
}
