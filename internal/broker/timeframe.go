package broker

var timeframeSeconds = map[string]int{
	"M1":  60,
	"M5":  5 * 60,
	"M15": 15 * 60,
	"M30": 30 * 60,
	"H1":  60 * 60,
	"H4":  4 * 60 * 60,
	"D1":  24 * 60 * 60,
}

// TimeframeSeconds returns the bar duration for a timeframe code.
// Unknown codes return 0; ValidTimeframe is the place to reject them.
func TimeframeSeconds(code string) int {
	return timeframeSeconds[code]
}

// ValidTimeframe reports whether the timeframe code is supported.
func ValidTimeframe(code string) bool {
	_, ok := timeframeSeconds[code]
	return ok
}
