package svg

// Series is one coloured set of bars, one value per label.
type Series struct {
	Label  string
	Color  string
	Values []float64
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// Defaults for the analytics charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 5
)

// Palette colours series that do not set one: orders blue, invoices green.
var Palette = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444"}
