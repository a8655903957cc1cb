package beatgrid

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

const DefaultOutlierFactor = 4.0

// Anomaly flags the interval between two adjacent grid indices.
type Anomaly struct {
	Before int
	After  int
}

// FindOutliers flags every inter-beat interval shorter than the mean interval
// divided by factor. Long intervals are never flagged: rests and large
// ritardandi are legitimate. Intervals touching an undefined beat are left out
// of the mean and never flagged.
func FindOutliers(rows []models.BeatRow, factor float64, log Logger) []Anomaly {
	times := make([]float64, len(rows))
	for i, r := range rows {
		times[i] = r.Time
	}
	return findOutliers(times, factor, orNop(log))
}

func findOutliers(times []float64, factor float64, log Logger) []Anomaly {
	if len(times) < 2 {
		return nil
	}
	if factor <= 0 {
		factor = DefaultOutlierFactor
	}

	ibis := make([]float64, len(times)-1)
	defined := make([]float64, 0, len(ibis))
	for i := range ibis {
		ibis[i] = times[i+1] - times[i]
		if !math.IsNaN(ibis[i]) {
			defined = append(defined, ibis[i])
		}
	}
	if len(defined) == 0 {
		return nil
	}
	mean := stat.Mean(defined, nil)

	var anomalies []Anomaly
	for i, ibi := range ibis {
		if math.IsNaN(ibi) || ibi*factor >= mean {
			continue
		}
		log.Debugf("Anomaly between beats %d and %d detected: %.3fs (min. %.3fs)", i, i+1, ibi, mean/factor)
		anomalies = append(anomalies, Anomaly{Before: i, After: i + 1})
	}
	return anomalies
}
