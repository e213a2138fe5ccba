package core

// MonthTotal is the spend aggregated over one calendar month.
type MonthTotal struct {
	MonthKey string // "YYYY-MM"
	Total    Money
}

// CategoryTotal is the spend aggregated over one macro category.
type CategoryTotal struct {
	Name  string
	Total Money
}

// StoreStat summarizes purchase behaviour at one store.
type StoreStat struct {
	StoreID   int64
	StoreName string
	Count     int
	Total     Money
	Average   Money
}

// Overview is the dashboard summary assembled from the independent
// aggregations.
type Overview struct {
	AllTimeTotal  Money
	Monthly       []MonthTotal
	ByCategory    []CategoryTotal
	StoreRanking  []StoreStat
	InflationRate float64 // percent, last month vs previous
}

// AllowanceStatus is the meal-allowance position for the whole history.
type AllowanceStatus struct {
	Received  Money
	Spent     Money
	Balance   Money // clamped at zero
	Overspend Money // positive when spent exceeds received
}
