package statistics

const ringSize = 3600

// Rate keeps one hour of per-second samples.
type Rate struct {
	dataSeries [ringSize]float64
	currentPos int
}

func (r *Rate) Add(num float64) {
	r.currentPos = (r.currentPos + 1) % ringSize
	r.dataSeries[r.currentPos] = num
}

func (r *Rate) RecentNSum(recentn int) (sum float64) {
	sum = 0
	pos := 0
	for i := 0; i < recentn; i++ {
		pos = (r.currentPos - i)
		if pos < 0 {
			pos += ringSize
		}
		sum += r.dataSeries[pos]
	}
	return
}

func (r *Rate) RecentNAvg(recentn int) float64 {
	if recentn <= 0 {
		return 0
	}
	return r.RecentNSum(recentn) / float64(recentn)
}
