// Package stats summarises a PSM stream: precursor mass error distribution and
// charge, cleavage and isotope shift counts.
package stats

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

// Accumulator collects PSMs for a summary. The zero value is ready to use.
type Accumulator struct {
	ppm           []float64
	charges       map[int]int
	termini       [3]int
	isotopeShifts map[int]int
	autoDefined   int
	missed        map[int]int
}

// Add records one PSM.
func (a *Accumulator) Add(psm *core.PSM) {
	if a.charges == nil {
		a.charges = make(map[int]int)
		a.isotopeShifts = make(map[int]int)
		a.missed = make(map[int]int)
	}
	a.ppm = append(a.ppm, psm.MassErrorPPM)
	a.charges[psm.Charge]++
	if psm.TrypticTermini >= 0 && psm.TrypticTermini <= 2 {
		a.termini[psm.TrypticTermini]++
	}
	a.isotopeShifts[psm.IsotopeShift]++
	a.missed[psm.MissedCleavages]++
	if psm.HasAutoDefinedMods() {
		a.autoDefined++
	}
}

// Summary is a snapshot of an accumulator
type Summary struct {
	Count           int
	MeanPPM         float64
	StdDevPPM       float64
	MedianPPM       float64
	Q1PPM           float64
	Q3PPM           float64
	MinPPM          float64
	MaxPPM          float64
	Charges         map[int]int
	TrypticTermini  [3]int
	IsotopeShifts   map[int]int
	MissedCleavages map[int]int
	AutoDefinedPSMs int
}

// Summary computes the statistics over everything added so far.
func (a *Accumulator) Summary() Summary {
	s := Summary{
		Count:           len(a.ppm),
		Charges:         copyCounts(a.charges),
		TrypticTermini:  a.termini,
		IsotopeShifts:   copyCounts(a.isotopeShifts),
		MissedCleavages: copyCounts(a.missed),
		AutoDefinedPSMs: a.autoDefined,
	}
	if s.Count == 0 {
		return s
	}

	sorted := make([]float64, len(a.ppm))
	copy(sorted, a.ppm)
	sort.Float64s(sorted)

	s.MeanPPM, s.StdDevPPM = stat.MeanStdDev(sorted, nil)
	if s.Count < 2 {
		s.StdDevPPM = 0
	}
	s.MedianPPM = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.Q1PPM = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	s.Q3PPM = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	s.MinPPM = sorted[0]
	s.MaxPPM = sorted[len(sorted)-1]
	return s
}

func copyCounts(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Write prints the summary as aligned text.
func (s Summary) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "PSMs:\t%d\n", s.Count); err != nil {
		return err
	}
	if s.Count == 0 {
		return nil
	}
	fmt.Fprintf(w, "Mass error (ppm):\tmean %.3f\tstddev %.3f\n", s.MeanPPM, s.StdDevPPM)
	fmt.Fprintf(w, "\tmin %.3f\tQ1 %.3f\tmedian %.3f\tQ3 %.3f\tmax %.3f\n", s.MinPPM, s.Q1PPM, s.MedianPPM, s.Q3PPM, s.MaxPPM)

	fmt.Fprintf(w, "Charge states:\n")
	for _, z := range sortedKeys(s.Charges) {
		fmt.Fprintf(w, "\t%d+\t%d\n", z, s.Charges[z])
	}
	fmt.Fprintf(w, "Tryptic termini:\t0: %d\t1: %d\t2: %d\n", s.TrypticTermini[0], s.TrypticTermini[1], s.TrypticTermini[2])

	fmt.Fprintf(w, "Missed cleavages:\n")
	for _, k := range sortedKeys(s.MissedCleavages) {
		fmt.Fprintf(w, "\t%d\t%d\n", k, s.MissedCleavages[k])
	}
	fmt.Fprintf(w, "Isotope shifts:\n")
	for _, k := range sortedKeys(s.IsotopeShifts) {
		fmt.Fprintf(w, "\t%+d\t%d\n", k, s.IsotopeShifts[k])
	}
	_, err := fmt.Fprintf(w, "PSMs with auto-defined mods:\t%d\n", s.AutoDefinedPSMs)
	return err
}
