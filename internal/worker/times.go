package worker

import (
	"regexp"
	"strconv"
	"time"
)

// Times is the telemetry a worker periodically writes to its times file.
// Durations are milliseconds as reported by the worker.
type Times struct {
	Work     float64
	Wait     float64
	Block    float64
	Overhead float64
	Docs     int64
}

var timesPattern = regexp.MustCompile(`^Work\t(.*)\nWait\t(.*)\nBlock\t(.*)\nOverhead\t(.*)\nDocs\t(.*)\n`)

// ParseTimes parses the five-line tab-separated telemetry format. Missing
// or malformed content yields zero Times.
func ParseTimes(content string) Times {
	m := timesPattern.FindStringSubmatch(content)
	if m == nil {
		return Times{}
	}
	var t Times
	fields := []*float64{&t.Work, &t.Wait, &t.Block, &t.Overhead}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return Times{}
		}
		*dst = v
	}
	if m[5] != "" {
		docs, err := strconv.ParseInt(m[5], 10, 64)
		if err != nil {
			return Times{}
		}
		t.Docs = docs
	}
	return t
}

// Total is the sum of all four time categories.
func (t Times) Total() float64 {
	return t.Work + t.Wait + t.Block + t.Overhead
}

func (t Times) share(v float64) float64 {
	total := t.Total()
	if total == 0 {
		total = 1
	}
	return v / total
}

// WorkShare is the fraction of time spent working.
func (t Times) WorkShare() float64 { return t.share(t.Work) }

// WaitShare is the fraction of time spent waiting for input.
func (t Times) WaitShare() float64 { return t.share(t.Wait) }

// BlockShare is the fraction of time spent blocked on a full destination.
func (t Times) BlockShare() float64 { return t.share(t.Block) }

// OverheadShare is the fraction of time spent in overhead.
func (t Times) OverheadShare() float64 { return t.share(t.Overhead) }

// PerDoc is the average (work+overhead) time per document, zero before the
// first document.
func (t Times) PerDoc() time.Duration {
	if t.Docs == 0 {
		return 0
	}
	msec := (t.Work + t.Overhead) / float64(t.Docs)
	return time.Duration(msec * float64(time.Millisecond))
}
