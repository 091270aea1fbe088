package report

import (
	"path/filepath"
	"time"
)

type reportView struct {
	Aggregate *Aggregate
	Generated time.Time
	Total     int
	Counts    []statusCount
	Tests     []testView
}

type statusCount struct {
	Status string
	Count  int
}

type testView struct {
	Name        string
	Description string
	Worker      string
	Status      string
	Retried     bool
	Started     time.Time
	Duration    time.Duration
	Entries     []entryView
	Screenshots []string
}

type entryView struct {
	Time    time.Time
	Status  string
	Message string
}

func newReportView(agg *Aggregate, tests []*TestContext, now time.Time) reportView {
	dir := filepath.Dir(agg.Path)
	counts := map[Status]int{}
	view := reportView{Aggregate: agg, Generated: now}

	for _, t := range tests {
		status := t.Status()
		retried := t.Retried()
		if !retried {
			view.Total++
			counts[status]++
		}

		tv := testView{
			Name:        t.DisplayName(),
			Description: t.Description,
			Worker:      string(t.Worker),
			Status:      status.String(),
			Retried:     retried,
			Started:     t.Started(),
		}
		if end := t.Ended(); !end.IsZero() {
			tv.Duration = end.Sub(tv.Started)
		}
		for _, e := range t.Entries() {
			tv.Entries = append(tv.Entries, entryView{Time: e.Time, Status: e.Status.String(), Message: e.Message})
		}
		for _, shot := range t.Screenshots() {
			if rel, err := filepath.Rel(dir, shot); err == nil {
				shot = filepath.ToSlash(rel)
			}
			tv.Screenshots = append(tv.Screenshots, shot)
		}
		view.Tests = append(view.Tests, tv)
	}

	for _, s := range []Status{StatusPass, StatusFail, StatusSkip, StatusWarning, StatusInfo} {
		view.Counts = append(view.Counts, statusCount{Status: s.String(), Count: counts[s]})
	}
	return view
}
