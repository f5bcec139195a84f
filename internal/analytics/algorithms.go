package analytics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultValueColumn is the numeric column algorithms read from quote rows
const DefaultValueColumn = "current_price"

// DefaultAlgorithms run when the caller does not name any
var DefaultAlgorithms = []string{"moving_average", "volatility_calculation", "momentum_analysis"}

// AlgorithmFunc computes a result from rows. Returned errors are reported, not raised.
type AlgorithmFunc func(rows []Row, params Params) (Result, error)

// Params are the optional knobs shared by the built-in algorithms
type Params struct {
	ValueColumn  string
	SectorColumn string
	Window       int
	Periods      []int
}

func (p Params) withDefaults() Params {
	if p.ValueColumn == "" {
		p.ValueColumn = DefaultValueColumn
	}
	if p.SectorColumn == "" {
		p.SectorColumn = "sector"
	}
	if p.Window <= 0 {
		p.Window = 5
	}
	if len(p.Periods) == 0 {
		p.Periods = []int{5, 10, 20}
	}
	return p
}

// Algorithm is a registered custom analysis routine
type Algorithm struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	RegisteredAt time.Time `json:"registered_at"`
	fn           AlgorithmFunc
}

// Registry holds named algorithms. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	algos map[string]Algorithm
	now   func() time.Time
}

// NewRegistry creates a registry preloaded with the built-in algorithms
func NewRegistry() *Registry {
	r := &Registry{algos: make(map[string]Algorithm), now: time.Now}
	r.Register("moving_average", "Calculate moving average with specified window", MovingAverage)
	r.Register("volatility_calculation", "Calculate volatility and risk metrics", Volatility)
	r.Register("momentum_analysis", "Calculate momentum indicators and RSI", Momentum)
	r.Register("sector_analysis", "Analyze performance by sector", SectorAnalysis)
	return r
}

// Register adds or replaces an algorithm
func (r *Registry) Register(name, description string, fn AlgorithmFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algos[name] = Algorithm{Name: name, Description: description, RegisteredAt: r.now().UTC(), fn: fn}
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.algos[name]
	return ok
}

// List returns the registered algorithms sorted by name
func (r *Registry) List() []Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Algorithm, 0, len(r.algos))
	for _, a := range r.algos {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs one algorithm and wraps the outcome with its name and completion time.
// Panics inside the algorithm are reported as failures.
func (r *Registry) Execute(name string, rows []Row, params Params) (res Result) {
	r.mu.RLock()
	algo, ok := r.algos[name]
	r.mu.RUnlock()
	if !ok {
		names := make([]string, 0)
		for _, a := range r.List() {
			names = append(names, a.Name)
		}
		return Result{
			"success":              false,
			"error":                fmt.Sprintf("Algorithm '%s' not found", name),
			"available_algorithms": names,
		}
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result{"success": false, "error": fmt.Sprintf("algorithm panicked: %v", p), "algorithm_name": name}
		}
	}()

	out, err := algo.fn(rows, params.withDefaults())
	if err != nil {
		return Result{"success": false, "error": err.Error(), "algorithm_name": name}
	}
	return Result{
		"success":        true,
		"result":         out,
		"algorithm_name": name,
		"execution_time": r.now().UTC().Format(time.RFC3339),
	}
}

// RunAlgorithms executes the named algorithms (or the defaults) over rows. Unknown
// names are reported per entry without stopping the others.
func (r *Registry) RunAlgorithms(rows []Row, names []string) Result {
	if len(rows) == 0 {
		return errorResult("No data available for custom algorithms")
	}
	if len(names) == 0 {
		names = DefaultAlgorithms
	}
	results := Result{}
	for _, name := range names {
		if !r.Has(name) {
			results[name] = errorResult(fmt.Sprintf("Algorithm '%s' not found", name))
			continue
		}
		results[name] = r.Execute(name, rows, Params{})
	}
	return results
}

func requireColumn(rows []Row, col string) error {
	for _, r := range rows {
		if _, ok := r[col]; ok {
			return nil
		}
	}
	return fmt.Errorf("Column '%s' not found", col)
}

// MovingAverage computes a trailing mean; positions without a full window are null
func MovingAverage(rows []Row, p Params) (Result, error) {
	p = p.withDefaults()
	if err := requireColumn(rows, p.ValueColumn); err != nil {
		return nil, err
	}

	values := make([]*float64, len(rows))
	for i, r := range rows {
		if v, ok := Number(r[p.ValueColumn]); ok {
			values[i] = &v
		}
	}

	avg := make([]any, len(values))
	for i := range values {
		if i+1 < p.Window {
			continue
		}
		var sum float64
		complete := true
		for _, v := range values[i+1-p.Window : i+1] {
			if v == nil {
				complete = false
				break
			}
			sum += *v
		}
		if complete {
			avg[i] = sum / float64(p.Window)
		}
	}

	return Result{
		"moving_average": avg,
		"window":         p.Window,
		"data_points":    len(values),
	}, nil
}

// Volatility annualises the standard deviation of period returns and derives a Sharpe ratio
func Volatility(rows []Row, p Params) (Result, error) {
	p = p.withDefaults()
	if err := requireColumn(rows, p.ValueColumn); err != nil {
		return nil, err
	}

	returns := pctChange(column(rows, p.ValueColumn))
	if len(returns) < 2 {
		return Result{
			"volatility":   0.0,
			"sharpe_ratio": 0.0,
			"mean_return":  mean(returns),
			"std_return":   0.0,
			"data_points":  len(returns),
		}, nil
	}

	sd := stddev(returns)
	m := mean(returns)
	sharpe := 0.0
	if sd > 0 {
		sharpe = m / sd * math.Sqrt(252)
	}
	return Result{
		"volatility":   sd * math.Sqrt(252),
		"sharpe_ratio": sharpe,
		"mean_return":  m,
		"std_return":   sd,
		"data_points":  len(returns),
	}, nil
}

// Momentum reports percentage change over each look-back period and a 14 period RSI
func Momentum(rows []Row, p Params) (Result, error) {
	p = p.withDefaults()
	if err := requireColumn(rows, p.ValueColumn); err != nil {
		return nil, err
	}

	values := column(rows, p.ValueColumn)
	out := Result{}
	n := len(values)
	for _, period := range p.Periods {
		if period <= 0 || n < period {
			continue
		}
		base := values[n-period]
		if base == 0 {
			continue
		}
		out[fmt.Sprintf("momentum_%dd", period)] = (values[n-1] - base) / base * 100
	}

	if n >= 14 {
		out["rsi"] = rsi(values, 14)
	}
	return out, nil
}

// rsi averages the last window gains and losses. Without a full window of
// price changes, or with no movement at all, it is neutral (50).
func rsi(values []float64, window int) float64 {
	if len(values) < window+1 {
		return 50
	}
	var gain, loss float64
	for i := len(values) - window; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(window)
	loss /= float64(window)
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// SectorAnalysis groups rows by sector and summarises the value column
func SectorAnalysis(rows []Row, p Params) (Result, error) {
	p = p.withDefaults()
	if requireColumn(rows, p.SectorColumn) != nil || requireColumn(rows, p.ValueColumn) != nil {
		return nil, fmt.Errorf("Required columns not found")
	}

	groups := make(map[string][]float64)
	var order []string
	for _, r := range rows {
		sector, ok := r[p.SectorColumn].(string)
		if !ok || sector == "" {
			continue
		}
		v, ok := Number(r[p.ValueColumn])
		if !ok {
			continue
		}
		if _, seen := groups[sector]; !seen {
			order = append(order, sector)
		}
		groups[sector] = append(groups[sector], v)
	}
	sort.Strings(order)

	stats := make(map[string]any, len(order))
	performance := make(map[string]any)
	for _, sector := range order {
		vals := groups[sector]
		lo, hi := minMax(vals)
		entry := map[string]any{
			"count": len(vals),
			"mean":  round2(mean(vals)),
			"min":   round2(lo),
			"max":   round2(hi),
			"std":   nil,
		}
		if len(vals) > 1 {
			entry["std"] = round2(stddev(vals))
			performance[sector] = mean(pctChange(vals)) * 100
		}
		stats[sector] = entry
	}

	return Result{
		"sector_statistics":  stats,
		"sector_performance": performance,
		"total_sectors":      len(order),
	}, nil
}
