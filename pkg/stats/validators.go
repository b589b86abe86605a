package stats

type ReportQuery struct {
	From string `query:"from" json:"from,omitempty" validate:"omitempty,date"`
	// To is inclusive: loans made on that day are reported.
	To string `query:"to" json:"to,omitempty" validate:"omitempty,date"`
}
