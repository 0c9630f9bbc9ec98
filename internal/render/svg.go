package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

// Block is an activity as drawn on the grid.
type Block struct {
	ID      string
	Day     timetable.Day
	Start   timetable.Clock
	End     timetable.Clock
	Label   string
	Details string
	Color   string
}

// Week is everything needed to draw one timetable.
type Week struct {
	Title  string
	Layout timetable.WeekLayout
	Blocks []Block
}

// fallbackColor is used for blocks without a colour.
const fallbackColor = "#E5F6FD"

// SVG writes the week as a standalone SVG document. Blocks are nested <svg>
// viewports, so long labels are clipped to their block.
func SVG(w io.Writer, week Week, theme Theme) error {
	if err := theme.validate(); err != nil {
		return err
	}
	g := newGeometry(week.Layout, theme, week.Title != "")

	var svg strings.Builder
	fmt.Fprintf(&svg, `<?xml version="1.0" encoding="UTF-8"?>
<svg width="%s" height="%s" viewBox="0 0 %s %s" xmlns="http://www.w3.org/2000/svg" font-family="%s" font-size="%d">
`, px(g.width), px(g.height), px(g.width), px(g.height), escapeXML(theme.Font.Family), theme.Font.Size)
	fmt.Fprintf(&svg, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", theme.Colors.Background)

	if week.Title != "" {
		fmt.Fprintf(&svg, `<text class="title" x="%s" y="%s" font-size="%d" font-weight="bold" fill="%s">%s</text>`+"\n",
			px(g.left), px(g.top-float64(theme.Layout.HeaderHeight)-float64(theme.Layout.TitleHeight)/3),
			theme.Font.Size+4, theme.Colors.TitleColor, escapeXML(week.Title))
	}

	drawGrid(&svg, g, week.Layout, theme)

	for _, b := range week.Blocks {
		p, ok := week.Layout.Placement(b.ID)
		if !ok {
			continue
		}
		drawBlock(&svg, g, week.Layout, theme, b, p)
	}

	svg.WriteString("</svg>\n")
	_, err := io.WriteString(w, svg.String())
	return err
}

// Size reports the pixel dimensions SVG uses for week.
func Size(week Week, theme Theme) (width, height float64) {
	g := newGeometry(week.Layout, theme, week.Title != "")
	return g.width, g.height
}

type geometry struct {
	left, top     float64 // top-left corner of the Monday 1st-row cell
	dayWidth      float64
	rowHeight     float64
	rows          int
	width, height float64
}

func newGeometry(layout timetable.WeekLayout, theme Theme, titled bool) geometry {
	rowHeight := layout.RowHeightPx
	if rowHeight <= 0 {
		rowHeight = timetable.DefaultRowHeightPx
	}
	rows := layout.LastHour - layout.FirstHour
	if rows < 0 {
		rows = 0
	}
	pad := float64(theme.Layout.Padding)
	top := pad + float64(theme.Layout.HeaderHeight)
	if titled {
		top += float64(theme.Layout.TitleHeight)
	}
	g := geometry{
		left:      pad + float64(theme.Layout.HourColumnWidth),
		top:       top,
		dayWidth:  float64(theme.Layout.DayColumnWidth),
		rowHeight: rowHeight,
		rows:      rows,
	}
	g.width = g.left + g.dayWidth*timetable.DaysPerWeek + pad
	g.height = g.top + g.rowHeight*float64(rows) + pad
	return g
}

func drawGrid(svg *strings.Builder, g geometry, layout timetable.WeekLayout, theme Theme) {
	bottom := g.top + g.rowHeight*float64(g.rows)
	right := g.left + g.dayWidth*timetable.DaysPerWeek

	for i, d := range timetable.Week() {
		x := g.left + g.dayWidth*float64(i)
		fmt.Fprintf(svg, `<text class="day" x="%s" y="%s" text-anchor="middle" font-weight="bold" fill="%s">%s</text>`+"\n",
			px(x+g.dayWidth/2), px(g.top-float64(theme.Layout.HeaderHeight)/3), theme.Colors.Header, d)
		fmt.Fprintf(svg, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n",
			px(x), px(g.top), px(x), px(bottom), theme.Colors.Grid)
	}
	fmt.Fprintf(svg, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n",
		px(right), px(g.top), px(right), px(bottom), theme.Colors.Grid)

	for r := 0; r <= g.rows; r++ {
		y := g.top + g.rowHeight*float64(r)
		fmt.Fprintf(svg, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n",
			px(g.left), px(y), px(right), px(y), theme.Colors.Grid)
		if r == g.rows {
			break
		}
		hour := timetable.Clock((layout.FirstHour + r) * timetable.MinutesPerHour)
		fmt.Fprintf(svg, `<text class="hour" x="%s" y="%s" text-anchor="end" fill="%s">%s</text>`+"\n",
			px(g.left-6), px(y+float64(theme.Font.Size)), theme.Colors.HourLabel, hour)
	}
}

func drawBlock(svg *strings.Builder, g geometry, layout timetable.WeekLayout, theme Theme, b Block, p timetable.Placement) {
	row := b.Start.Hour() - layout.FirstHour
	if row < 0 || row >= g.rows {
		return
	}
	inset := float64(theme.Layout.BlockInset)
	x := g.left + g.dayWidth*float64(b.Day) + p.Left/100*g.dayWidth + inset
	y := g.top + g.rowHeight*float64(row) + p.Top/100*g.rowHeight
	w := max(p.Width/100*g.dayWidth-2*inset, 1)
	h := p.HeightPx

	color := b.Color
	if color == "" {
		color = fallbackColor
	}

	fmt.Fprintf(svg, `<svg class="activity" data-id="%s" x="%s" y="%s" width="%s" height="%s">`+"\n",
		escapeXML(b.ID), px(x), px(y), px(w), px(h))
	fmt.Fprintf(svg, `<rect width="100%%" height="100%%" rx="%d" fill="%s" stroke="%s"/>`+"\n",
		theme.Layout.BlockRadius, escapeXML(color), theme.Colors.BlockEdge)

	lineHeight := float64(theme.Font.Size) + 2
	fmt.Fprintf(svg, `<text x="4" y="%s" font-weight="bold" fill="%s">%s</text>`+"\n",
		px(lineHeight), theme.Colors.BlockText, escapeXML(b.Label))
	fmt.Fprintf(svg, `<text x="4" y="%s" font-size="%d" fill="%s">%s-%s</text>`+"\n",
		px(2*lineHeight), max(theme.Font.Size-2, 1), theme.Colors.BlockText, b.Start, b.End)
	if theme.ShowDetails && b.Details != "" {
		fmt.Fprintf(svg, `<text x="4" y="%s" font-size="%d" fill="%s">%s</text>`+"\n",
			px(3*lineHeight), max(theme.Font.Size-2, 1), theme.Colors.BlockText, escapeXML(b.Details))
	}
	svg.WriteString("</svg>\n")
}

// px formats a coordinate with at most two decimals and no trailing zeros.
func px(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
