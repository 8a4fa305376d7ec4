package risk

import "time"

// RiskLevel buckets the 0-100 composite risk score.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLevelLow:
		return "low"
	case RiskLevelMedium:
		return "medium"
	case RiskLevelHigh:
		return "high"
	default:
		return "critical"
	}
}

// RiskLevelFromScore maps a composite score to its bucket. Thresholds sit
// at 30, 60 and 80.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score < 30:
		return RiskLevelLow
	case score < 60:
		return RiskLevelMedium
	case score < 80:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// PositionRisk is the per-position risk record. Size is signed: positive
// means long, negative means short. Records are owned by the Manager;
// accessors hand out copies.
type PositionRisk struct {
	Symbol             string
	Size               float64
	EntryPrice         float64
	CurrentPrice       float64
	UnrealizedPnL      float64
	RiskPercentage     float64
	StopLossDistance   float64
	TakeProfitDistance float64
}

// RiskMetrics is the aggregate snapshot derived from live state. It is
// recomputed on demand and never stored.
type RiskMetrics struct {
	TotalExposure float64
	Drawdown      float64
	DailyPnL      float64
	PositionCount int
	Score         float64
	Level         RiskLevel
}

// Limits holds the configurable risk bounds. The float fields are
// fractions of account balance.
type Limits struct {
	MaxPositionSize  float64
	MaxTotalExposure float64
	MaxDailyLoss     float64
	MaxDrawdown      float64
	MaxPositions     int
}

// DefaultLimits returns the stock limit set: 10% per position, 50% total
// exposure, 5% daily loss, 15% drawdown, 10 open positions.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:  0.1,
		MaxTotalExposure: 0.5,
		MaxDailyLoss:     0.05,
		MaxDrawdown:      0.15,
		MaxPositions:     10,
	}
}

// Report is the full observability snapshot produced by GetRiskReport.
type Report struct {
	Timestamp          time.Time
	AccountBalance     float64
	InitialBalance     float64
	TotalExposure      float64
	ExposurePercentage float64
	DailyPnL           float64
	Drawdown           float64
	PositionCount      int
	Score              float64
	Level              RiskLevel
	Positions          []PositionRisk
	Limits             Limits
}
