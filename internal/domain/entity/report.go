package entity

import "time"

// MonthlyReport lists the tasks one assignee completed during a calendar month
type MonthlyReport struct {
	Assignee *User
	Year     int
	Month    time.Month
	Tasks    []*Task
}

// OnTime counts tasks completed no later than their deadline
func (r *MonthlyReport) OnTime() int {
	return len(r.Tasks) - r.Late()
}

// Late counts tasks completed after their deadline
func (r *MonthlyReport) Late() int {
	n := 0
	for _, t := range r.Tasks {
		if t.CompletedLate() {
			n++
		}
	}
	return n
}
