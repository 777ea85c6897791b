package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/fmc-ops/opsdash/internal/format"
)

var (
	ErrNoSeries    = errors.New("svg: at least one series required")
	ErrNoLabels    = errors.New("svg: labels required")
	ErrTooSmall    = errors.New("svg: viewport too small")
	errLengthMatch = errors.New("svg: series length must match labels")
)

// Bars renders a grouped bar chart, one group per label and one bar per
// series within each group.
func Bars(width, height int, labels []string, series []Series, opts BarOpts) ([]byte, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return nil, fmt.Errorf("%w: %q has %d values for %d labels", errLengthMatch, s.Label, len(s.Values), len(labels))
		}
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#e2e8f0")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return nil, ErrTooSmall
	}

	minVal, maxVal := bounds(series)
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	scale := chartHeight / (maxVal - minVal)
	zeroY := padding + chartHeight - (0-minVal)*scale
	bottom := padding + chartHeight

	groupWidth := chartWidth / float64(len(labels))
	barWidth := groupWidth * 0.8 / float64(len(series))
	inset := groupWidth * 0.1

	titleID := makeID(opts.Title, "title")
	descID := makeID(opts.Title, "desc")

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, width, height, titleID, descID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, esc(fallback(opts.Title, "Bar chart")))
	fmt.Fprintf(&b, `<desc id="%s">%s</desc>`, descID, esc(fallback(opts.Description, "Grouped bar comparison")))

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		value := minVal + (maxVal-minVal)*ratio
		y := bottom - ratio*chartHeight
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="3,3" aria-hidden="true"></line>`, padding, y, padding+chartWidth, y, gridColor)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, padding-6, y+4, axisColor, esc(format.Compact(math.Round(value))))
	}

	fmt.Fprintf(&b, `<g stroke="%s" aria-hidden="true">`, axisColor)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, padding, padding, padding, bottom)
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, padding, zeroY, padding+chartWidth, zeroY)
	b.WriteString("</g>")

	for i, label := range labels {
		baseX := padding + float64(i)*groupWidth + inset
		for j, s := range series {
			y, h := barPosition(s.Values[i], scale, zeroY, padding, bottom)
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s: %s</title></rect>`,
				baseX+float64(j)*barWidth, y, barWidth, h, seriesColor(s, j), esc(s.Label), esc(label), esc(format.Compact(s.Values[i])))
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, padding+float64(i)*groupWidth+groupWidth/2, bottom+14, axisColor, esc(label))
	}

	legendX := padding
	legendY := math.Max(padding-12, 12)
	for j, s := range series {
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, legendX, legendY-8, seriesColor(s, j))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, legendX+14, legendY, axisColor, esc(fallback(s.Label, fmt.Sprintf("Series %d", j+1))))
		legendX += 90
	}

	b.WriteString("</svg>")
	return []byte(b.String()), nil
}

func seriesColor(s Series, i int) string {
	return fallback(s.Color, Palette[i%len(Palette)])
}

// bounds spans every value and always includes zero.
func bounds(series []Series) (float64, float64) {
	minVal, maxVal := 0.0, 0.0
	for _, s := range series {
		for _, v := range s.Values {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	return minVal, maxVal
}

func barPosition(value, scale, zeroY, top, bottom float64) (float64, float64) {
	if value >= 0 {
		height := value * scale
		y := zeroY - height
		if y < top {
			height -= top - y
			y = top
		}
		return y, math.Max(height, 0)
	}
	height := math.Abs(value * scale)
	if zeroY+height > bottom {
		height = bottom - zeroY
	}
	return zeroY, math.Max(height, 0)
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}
