package types

// Defaults applied to optional download request fields.
const (
	DefaultCurrency     = "USD"
	DefaultExchange     = "SMART"
	DefaultContractType = "Stock"
	DefaultWhatToShow   = "TRADES"
)

// DownloadRequest declares a cross product of tickers and granularities to ingest from StartingDate on.
type DownloadRequest struct {
	Tickers       []string `json:"tickers" yaml:"tickers" jsonschema:"title=Tickers,description=Instrument symbols to download,minItems=1,required" validate:"required,min=1,dive,required"`
	Granularities []string `json:"granularities" yaml:"granularities" jsonschema:"title=Granularities,description=Bar size codes,minItems=1,required" validate:"required,min=1,dive,required"`
	StartingDate  string   `json:"starting_date" yaml:"starting_date" jsonschema:"title=Starting Date,description=First day to download,format=date,required" validate:"required,datetime=2006-01-02"`
	Currency      string   `json:"currency,omitempty" yaml:"currency,omitempty" jsonschema:"title=Currency,default=USD"`
	Exchange      string   `json:"exchange,omitempty" yaml:"exchange,omitempty" jsonschema:"title=Exchange,default=SMART"`
	Type          string   `json:"type,omitempty" yaml:"type,omitempty" jsonschema:"title=Contract Type,enum=Stock,enum=Index,enum=CFD,default=Stock" validate:"omitempty,oneof=Stock Index CFD"`
	WhatToShow    string   `json:"whatToShow,omitempty" yaml:"whatToShow,omitempty" jsonschema:"title=What To Show,enum=TRADES,enum=MIDPOINT,enum=BID,enum=ASK,enum=BID_ASK,default=TRADES" validate:"omitempty,oneof=TRADES MIDPOINT BID ASK BID_ASK"`
	Provider      string   `json:"provider,omitempty" yaml:"provider,omitempty" jsonschema:"title=Provider,description=Provider name; empty uses the configured default"`
}

// WithDefaults returns a copy with empty optional fields filled in.
func (r DownloadRequest) WithDefaults() DownloadRequest {
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}

	if r.Exchange == "" {
		r.Exchange = DefaultExchange
	}

	if r.Type == "" {
		r.Type = DefaultContractType
	}

	if r.WhatToShow == "" {
		r.WhatToShow = DefaultWhatToShow
	}

	return r
}
