// Package render draws a laid out week as an SVG timetable.
package render

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Theme controls fonts, colours and grid geometry. Fields missing from a
// theme file keep their default values.
type Theme struct {
	Font struct {
		Family string `yaml:"family"` // CSS font family for every text element
		Size   int    `yaml:"size"`   // base font size in pixels
	} `yaml:"font"`
	Colors struct {
		Background string `yaml:"background"`
		Grid       string `yaml:"grid"`        // hour and day separators
		Header     string `yaml:"header"`      // day names
		HourLabel  string `yaml:"hour_label"`  // "09:00" labels in the left column
		BlockText  string `yaml:"block_text"`  // label and time range inside a block
		BlockEdge  string `yaml:"block_edge"`  // block outline
		TitleColor string `yaml:"title_color"` // optional title above the grid
	} `yaml:"colors"`
	Layout struct {
		Padding         int `yaml:"padding"`
		TitleHeight     int `yaml:"title_height"`
		HeaderHeight    int `yaml:"header_height"`
		HourColumnWidth int `yaml:"hour_column_width"`
		DayColumnWidth  int `yaml:"day_column_width"`
		BlockRadius     int `yaml:"block_radius"`
		BlockInset      int `yaml:"block_inset"` // gap kept between neighbouring blocks
	} `yaml:"layout"`
	ShowDetails bool `yaml:"show_details"`
}

// DefaultTheme is a light theme sized for the default 60px rows.
func DefaultTheme() Theme {
	var t Theme
	t.Font.Family = "Inter, Arial, sans-serif"
	t.Font.Size = 12

	t.Colors.Background = "#FFFFFF"
	t.Colors.Grid = "#E0E0E0"
	t.Colors.Header = "#212121"
	t.Colors.HourLabel = "#757575"
	t.Colors.BlockText = "#263238"
	t.Colors.BlockEdge = "#90A4AE"
	t.Colors.TitleColor = "#212121"

	t.Layout.Padding = 16
	t.Layout.TitleHeight = 32
	t.Layout.HeaderHeight = 28
	t.Layout.HourColumnWidth = 56
	t.Layout.DayColumnWidth = 140
	t.Layout.BlockRadius = 4
	t.Layout.BlockInset = 1
	return t
}

// ParseTheme overlays YAML data on the default theme.
func ParseTheme(data []byte) (Theme, error) {
	theme := DefaultTheme()
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return Theme{}, fmt.Errorf("parse theme: %w", err)
	}
	if err := theme.validate(); err != nil {
		return Theme{}, err
	}
	return theme, nil
}

// LoadTheme reads a theme file. An empty path yields the default theme.
func LoadTheme(path string) (Theme, error) {
	if path == "" {
		return DefaultTheme(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("read theme: %w", err)
	}
	return ParseTheme(data)
}

func (t Theme) validate() error {
	switch {
	case t.Font.Size <= 0:
		return fmt.Errorf("theme font.size must be positive, got %d", t.Font.Size)
	case t.Layout.DayColumnWidth <= 0:
		return fmt.Errorf("theme layout.day_column_width must be positive, got %d", t.Layout.DayColumnWidth)
	case t.Layout.HourColumnWidth < 0, t.Layout.HeaderHeight < 0, t.Layout.Padding < 0, t.Layout.TitleHeight < 0:
		return fmt.Errorf("theme layout sizes must not be negative")
	}
	return nil
}
