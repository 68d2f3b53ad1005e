package service

import "github.com/noah-isme/course-intake-api/internal/models"

// CourseTermGroup collects the pending intentions of one course-term.
type CourseTermGroup struct {
	Key        models.CourseTermKey
	Intentions []models.CourseIntention
}

// Demand returns the number of intentions in the group.
func (g CourseTermGroup) Demand() int {
	return len(g.Intentions)
}

// Demand is the aggregated view of one batch of pending intentions.
type Demand struct {
	// Groups keeps first-encounter order of course-terms.
	Groups    []CourseTermGroup
	ByStudent map[string][]models.CourseIntention
}

// Empty reports whether there is nothing to process.
func (d Demand) Empty() bool {
	return len(d.Groups) == 0
}

// StudentIDs lists distinct students in first-encounter order.
func (d Demand) StudentIDs() []string {
	seen := make(map[string]struct{}, len(d.ByStudent))
	ids := make([]string, 0, len(d.ByStudent))
	for _, group := range d.Groups {
		for _, intention := range group.Intentions {
			if _, ok := seen[intention.StudentID]; ok {
				continue
			}
			seen[intention.StudentID] = struct{}{}
			ids = append(ids, intention.StudentID)
		}
	}
	return ids
}

// CourseCodes lists distinct course codes in first-encounter order.
func (d Demand) CourseCodes() []string {
	seen := make(map[string]struct{}, len(d.Groups))
	codes := make([]string, 0, len(d.Groups))
	for _, group := range d.Groups {
		if _, ok := seen[group.Key.CourseCode]; ok {
			continue
		}
		seen[group.Key.CourseCode] = struct{}{}
		codes = append(codes, group.Key.CourseCode)
	}
	return codes
}

// Terms lists distinct terms in first-encounter order.
func (d Demand) Terms() []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0, 1)
	for _, group := range d.Groups {
		if _, ok := seen[group.Key.Term]; ok {
			continue
		}
		seen[group.Key.Term] = struct{}{}
		terms = append(terms, group.Key.Term)
	}
	return terms
}

// AggregateDemand groups pending intentions by course-term and by student.
// Intentions that are no longer pending are ignored.
func AggregateDemand(intentions []models.CourseIntention) Demand {
	demand := Demand{ByStudent: make(map[string][]models.CourseIntention)}
	index := make(map[models.CourseTermKey]int)
	for _, intention := range intentions {
		if intention.Status != models.IntentionStatusPending {
			continue
		}
		key := intention.CourseTermKey()
		pos, ok := index[key]
		if !ok {
			pos = len(demand.Groups)
			index[key] = pos
			demand.Groups = append(demand.Groups, CourseTermGroup{Key: key})
		}
		demand.Groups[pos].Intentions = append(demand.Groups[pos].Intentions, intention)
		demand.ByStudent[intention.StudentID] = append(demand.ByStudent[intention.StudentID], intention)
	}
	return demand
}
