package domain

// WorkMode is the venue's current trading session state.
type WorkMode string

const (
	// WorkModeFull means the venue accepts both buy and sell orders.
	WorkModeFull WorkMode = "full"
	// WorkModeClosed means the venue accepts nothing.
	WorkModeClosed WorkMode = "closed"
	// WorkModePostMarket means the session has ended; open orders should be
	// reconciled for the next session.
	WorkModePostMarket WorkMode = "post_market"
	// WorkModePreMarket means only sell orders may be placed.
	WorkModePreMarket WorkMode = "pre_market"
)

// MarketRegime classifies the overall market climate; the rebalancer's
// position-margin policy table is keyed by it.
type MarketRegime string

const (
	RegimeNormal  MarketRegime = "normal"
	RegimeRiskOn  MarketRegime = "risk_on"
	RegimeRiskOff MarketRegime = "risk_off"
)
