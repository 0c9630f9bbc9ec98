package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/render"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

// scheduleFile is the offline schedule format. JSON files parse too since
// YAML is a superset.
type scheduleFile struct {
	Title      string         `yaml:"title"`
	Activities []fileActivity `yaml:"activities"`
}

type fileActivity struct {
	ID        string `yaml:"id"`
	Day       string `yaml:"day"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
	Activity  string `yaml:"activity"`
	Color     string `yaml:"color"`
	Details   string `yaml:"details"`
}

// schedule is a loaded and validated schedule file.
type schedule struct {
	Title  string
	Blocks []render.Block
}

func (s schedule) entries() []timetable.Entry {
	out := make([]timetable.Entry, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		out = append(out, timetable.Entry{ID: b.ID, Day: b.Day, Start: b.Start, End: b.End})
	}
	return out
}

func (s schedule) label(id string) string {
	for _, b := range s.Blocks {
		if b.ID == id {
			return b.Label
		}
	}
	return id
}

func loadSchedule(path string) (schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schedule{}, fmt.Errorf("read schedule: %w", err)
	}
	return parseSchedule(data)
}

func parseSchedule(data []byte) (schedule, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return schedule{}, fmt.Errorf("parse schedule: %w", err)
	}

	out := schedule{Title: file.Title, Blocks: make([]render.Block, 0, len(file.Activities))}
	for i, a := range file.Activities {
		id := a.ID
		if id == "" {
			id = fmt.Sprintf("activity-%d", i+1)
		}
		day, err := timetable.ParseDay(a.Day)
		if err != nil {
			return schedule{}, fmt.Errorf("activities[%d].day: %w", i, err)
		}
		start, err := timetable.ParseClock(a.StartTime)
		if err != nil {
			return schedule{}, fmt.Errorf("activities[%d].start_time: %w", i, err)
		}
		end, err := timetable.ParseClock(a.EndTime)
		if err != nil {
			return schedule{}, fmt.Errorf("activities[%d].end_time: %w", i, err)
		}
		label := a.Activity
		if label == "" {
			label = id
		}
		out.Blocks = append(out.Blocks, render.Block{
			ID:      id,
			Day:     day,
			Start:   start,
			End:     end,
			Label:   label,
			Details: a.Details,
			Color:   a.Color,
		})
	}
	if err := domain.ValidateEntries(out.entries()); err != nil {
		return schedule{}, err
	}
	return out, nil
}
