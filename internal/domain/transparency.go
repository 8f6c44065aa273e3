package domain

// TransparencyRecord is a MiFIR transparency calculation for one instrument.
type TransparencyRecord struct {
	ID                        string   `json:"id"`
	ISIN                      string   `json:"isin,omitempty"`
	CalculationType           string   `json:"calculation_type,omitempty"`
	FileType                  string   `json:"file_type,omitempty"`
	FromDate                  string   `json:"from_date,omitempty"`
	ToDate                    string   `json:"to_date,omitempty"`
	Liquidity                 *bool    `json:"liquidity,omitempty"`
	Methodology               string   `json:"methodology,omitempty"`
	TotalNumberOfTransactions *float64 `json:"total_number_of_transactions,omitempty"`
	TotalVolumeOfTransactions *float64 `json:"total_volume_of_transactions,omitempty"`
	AverageDailyTurnover      *float64 `json:"average_daily_turnover,omitempty"`
	LargeInScaleThreshold     *float64 `json:"large_in_scale,omitempty"`
	StandardMarketSize        *float64 `json:"standard_market_size,omitempty"`
}
