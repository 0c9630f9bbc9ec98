package render

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

func sampleWeek(opts timetable.Options) Week {
	blocks := []Block{
		{ID: "a", Day: timetable.Monday, Start: timetable.MustClock("09:00"), End: timetable.MustClock("10:00"), Label: "Algorithms", Color: "#E5F6FD"},
		{ID: "b", Day: timetable.Monday, Start: timetable.MustClock("09:30"), End: timetable.MustClock("10:30"), Label: "R&D <sync>", Color: "#FFF4E5"},
		{ID: "c", Day: timetable.Friday, Start: timetable.MustClock("13:15"), End: timetable.MustClock("14:00"), Label: "Gym"},
	}
	entries := make([]timetable.Entry, 0, len(blocks))
	for _, b := range blocks {
		entries = append(entries, timetable.Entry{ID: b.ID, Day: b.Day, Start: b.Start, End: b.End})
	}
	return Week{Title: "Semester 1", Layout: timetable.LayoutWeek(entries, opts), Blocks: blocks}
}

type svgNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []svgNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n svgNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parse(t *testing.T, data []byte) svgNode {
	t.Helper()
	var root svgNode
	require.NoError(t, xml.Unmarshal(data, &root), "output must be well formed XML")
	return root
}

func activities(root svgNode) map[string]svgNode {
	out := map[string]svgNode{}
	for _, n := range root.Nodes {
		if n.XMLName.Local == "svg" && n.attr("class") == "activity" {
			out[n.attr("data-id")] = n
		}
	}
	return out
}

func TestSVGPlacesBlocksFromLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, sampleWeek(timetable.Options{}), DefaultTheme()))

	root := parse(t, buf.Bytes())
	theme := DefaultTheme()
	// Full day grid: 24 rows of 60px below padding, title and header.
	top := float64(theme.Layout.Padding + theme.Layout.TitleHeight + theme.Layout.HeaderHeight)
	require.Equal(t, px(top+24*60+float64(theme.Layout.Padding)), root.attr("height"))

	blocks := activities(root)
	require.Len(t, blocks, 3)

	left := float64(theme.Layout.Padding + theme.Layout.HourColumnWidth)
	a, b := blocks["a"], blocks["b"]
	assert.Equal(t, px(left+1), a.attr("x"))
	assert.Equal(t, px(top+9*60), a.attr("y"))
	assert.Equal(t, "68", a.attr("width"), "half of a 140px column minus the inset")
	assert.Equal(t, "60", a.attr("height"))

	assert.Equal(t, px(left+70+1), b.attr("x"))
	assert.Equal(t, px(top+9*60+30), b.attr("y"))

	c := blocks["c"]
	assert.Equal(t, px(left+4*140+1), c.attr("x"))
	assert.Equal(t, "45", c.attr("height"))
}

func TestSVGActiveHoursTrimsRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, sampleWeek(timetable.Options{ActiveHoursOnly: true}), DefaultTheme()))

	root := parse(t, buf.Bytes())
	var hours []string
	for _, n := range root.Nodes {
		if n.XMLName.Local == "text" && n.attr("class") == "hour" {
			hours = append(hours, n.Text)
		}
	}
	require.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "13:00"}, hours)

	theme := DefaultTheme()
	top := float64(theme.Layout.Padding + theme.Layout.TitleHeight + theme.Layout.HeaderHeight)
	require.Equal(t, px(top), activities(root)["a"].attr("y"))
}

func TestSVGEscapesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, sampleWeek(timetable.Options{}), DefaultTheme()))

	out := buf.String()
	require.Contains(t, out, "R&amp;D &lt;sync&gt;")
	require.NotContains(t, out, "<sync>")
}

func TestSVGUsesFallbackColour(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, sampleWeek(timetable.Options{}), DefaultTheme()))

	c := activities(parse(t, buf.Bytes()))["c"]
	require.NotEmpty(t, c.Nodes)
	require.Equal(t, fallbackColor, c.Nodes[0].attr("fill"))
}

func TestSVGSkipsBlocksWithoutPlacement(t *testing.T) {
	week := sampleWeek(timetable.Options{})
	week.Blocks = append(week.Blocks, Block{ID: "ghost", Day: timetable.Sunday, Start: 0, End: 60, Label: "ghost"})

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, week, DefaultTheme()))
	require.NotContains(t, activities(parse(t, buf.Bytes())), "ghost")
}

func TestSVGEmptyWeek(t *testing.T) {
	var buf bytes.Buffer
	week := Week{Layout: timetable.LayoutWeek(nil, timetable.Options{ActiveHoursOnly: true})}
	require.NoError(t, SVG(&buf, week, DefaultTheme()))

	root := parse(t, buf.Bytes())
	require.Empty(t, activities(root))
	require.Equal(t, 0, strings.Count(buf.String(), `class="title"`))
}

func TestSVGPropagatesWriteErrors(t *testing.T) {
	err := SVG(failingWriter{}, sampleWeek(timetable.Options{}), DefaultTheme())
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestParseThemeOverlaysDefaults(t *testing.T) {
	theme, err := ParseTheme([]byte("colors:\n  background: \"#000000\"\nlayout:\n  day_column_width: 200\nshow_details: true\n"))
	require.NoError(t, err)

	require.Equal(t, "#000000", theme.Colors.Background)
	require.Equal(t, 200, theme.Layout.DayColumnWidth)
	require.True(t, theme.ShowDetails)
	require.Equal(t, DefaultTheme().Font.Family, theme.Font.Family)
	require.Equal(t, DefaultTheme().Colors.Grid, theme.Colors.Grid)
}

func TestParseThemeRejectsInvalidValues(t *testing.T) {
	_, err := ParseTheme([]byte("font:\n  size: 0\n"))
	require.ErrorContains(t, err, "font.size")

	_, err = ParseTheme([]byte("layout: [1, 2]"))
	require.ErrorContains(t, err, "parse theme")
}

func TestLoadTheme(t *testing.T) {
	theme, err := LoadTheme("")
	require.NoError(t, err)
	require.Equal(t, DefaultTheme(), theme)

	path := filepath.Join(t.TempDir(), "theme.yaml")
	require.NoError(t, os.WriteFile(path, []byte("font:\n  size: 14\n"), 0o600))
	theme, err = LoadTheme(path)
	require.NoError(t, err)
	require.Equal(t, 14, theme.Font.Size)

	_, err = LoadTheme(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read theme")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
