package config

// PolicyView is the subset of the config borrowers are allowed to see.
type PolicyView struct {
	MaxActiveLoans        int    `json:"max_active_loans"`
	MaxActiveReservations int    `json:"max_active_reservations"`
	LoanDurationDays      int    `json:"loan_duration_days"`
	ReservationHoldDays   int    `json:"reservation_hold_days"`
	MaxRenewals           int    `json:"max_renewals"`
	OverdueGraceDays      int    `json:"overdue_grace_days"`
	RenewalCheckOrder     string `json:"renewal_check_order"`
}

type Service struct {
	config *Config
}

func NewService(cfg *Config) *Service {
	return &Service{config: cfg}
}

func (s *Service) RetrievePolicyView() *PolicyView {
	return &PolicyView{
		MaxActiveLoans:        s.config.MaxActiveLoans,
		MaxActiveReservations: s.config.MaxActiveReservations,
		LoanDurationDays:      s.config.LoanDurationDays,
		ReservationHoldDays:   s.config.ReservationHoldDays,
		MaxRenewals:           s.config.MaxRenewals,
		OverdueGraceDays:      s.config.OverdueGraceDays,
		RenewalCheckOrder:     s.config.RenewalCheckOrder,
	}
}
