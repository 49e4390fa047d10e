package models

// Requests for the CLP HTTP endpoints. Pointer fields keep an explicit 0 apart
// from "not given" so defaults only fill what the caller left out.

type InstrumentRequest struct {
	Symbol      string   `param:"symbol" json:"symbol" validate:"required,alphanum,max=20"`
	Interval    string   `query:"interval" json:"interval" default:"1h" validate:"oneof=5m 15m 1h 4h 1d"`
	Lookback    int      `query:"lookback" json:"lookback" default:"500" validate:"gte=100,lte=1500"`
	Sensitivity string   `query:"sensitivity" json:"sensitivity" validate:"omitempty,sensitivity"`
	ZWindow     int      `query:"zwin" json:"zwin" validate:"omitempty,gte=2,lte=500"`
	WFunding    *float64 `query:"w_funding" json:"w_funding" default:"0.5" validate:"omitempty,gte=0,lte=1"`
	WOI         *float64 `query:"w_oi" json:"w_oi" default:"0.3" validate:"omitempty,gte=0,lte=1"`
	WAbsRet     *float64 `query:"w_absret" json:"w_absret" default:"0.2" validate:"omitempty,gte=0,lte=1"`
	Policy      string   `query:"policy" json:"policy" validate:"omitempty,oneof=percentile std"`
	PStress     *float64 `query:"p_stress" json:"p_stress" validate:"omitempty,gte=0,lt=1"`
	PExtreme    *float64 `query:"p_extreme" json:"p_extreme" validate:"omitempty,gte=0,lt=1"`
	KStress     *float64 `query:"k_stress" json:"k_stress" validate:"omitempty,gte=0"`
	KExtreme    *float64 `query:"k_extreme" json:"k_extreme" validate:"omitempty,gte=0"`
	ShareWindow int      `query:"share_window" json:"share_window" default:"300" validate:"gte=1,lte=5000"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,alphanum,max=20"`
	From   string `query:"from" json:"from" validate:"omitempty,timestamp"`
	To     string `query:"to" json:"to" validate:"omitempty,timestamp"`
	Limit  int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=10000"`
	Pivot  int    `query:"pivot" json:"pivot" default:"150" validate:"gte=0,lte=5000"`
}

type FlipsRequest struct {
	N int `query:"n" json:"n" default:"8" validate:"gte=1,lte=500"`
}
