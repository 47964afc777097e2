package dashboard

import "time"

// ActivityLimit is the number of entries shown in the recent updates feed.
const ActivityLimit = 3

// ActivityRecord is a raw activity_log row joined with its actor.
type ActivityRecord struct {
	Username  string
	EventType string
	EntityID  string
	EventTime time.Time
}

// ActivityEntry is one rendered line of the recent updates feed.
type ActivityEntry struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	When   string `json:"when"`
}

// Counters are the four analytics figures shown in the footer.
type Counters struct {
	Batches          int64 `json:"batches"`
	Warehouses       int64 `json:"warehouses"`
	HarvestsThisYear int64 `json:"harvests_this_year"`
	OrdersThisMonth  int64 `json:"orders_this_month"`
}

// CounterWindow carries the calendar bounds used by the counters query.
type CounterWindow struct {
	Year       int
	MonthStart time.Time
	MonthEnd   time.Time
}

// WindowFor computes the current-year and current-month bounds for now, in now's location.
func WindowFor(now time.Time) CounterWindow {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return CounterWindow{
		Year:       now.Year(),
		MonthStart: monthStart,
		MonthEnd:   monthStart.AddDate(0, 1, 0),
	}
}

// Shell is the data rendered by the shared header and footer of every page.
type Shell struct {
	Activity      []ActivityEntry `json:"activity"`
	SampleFeed    bool            `json:"sample_feed"`
	Counters      Counters        `json:"counters"`
	CountersValid bool            `json:"counters_valid"`
}
