package econ

import "github.com/shopspring/decimal"

var (
	maxRewardHours    = decimal.NewFromInt(24)
	uptimeBonusAfter  = decimal.NewFromInt(23)
	uptimeBonusRate   = decimal.RequireFromString("0.1")
	maxBandwidthShare = decimal.NewFromInt(10)
	one               = decimal.NewFromInt(1)
)

// ResourceUsage is a node's shared resources over a reward period. CPU,
// memory and storage are fractions of capacity; bandwidth is a multiple of
// normal throughput.
type ResourceUsage struct {
	CPU         decimal.Decimal `json:"cpu_usage"`
	Memory      decimal.Decimal `json:"memory_usage"`
	Storage     decimal.Decimal `json:"storage_usage"`
	Bandwidth   decimal.Decimal `json:"bandwidth_usage"`
	UptimeHours decimal.Decimal `json:"uptime_hours"`
}

// RewardBreakdown itemizes ResourceRewards.
type RewardBreakdown struct {
	CPU              decimal.Decimal `json:"cpu_rewards"`
	Memory           decimal.Decimal `json:"memory_rewards"`
	Storage          decimal.Decimal `json:"storage_rewards"`
	Bandwidth        decimal.Decimal `json:"bandwidth_rewards"`
	Base             decimal.Decimal `json:"base_rewards"`
	UptimeBonus      decimal.Decimal `json:"bonus_rewards"`
	UptimeMultiplier decimal.Decimal `json:"uptime_multiplier"`
	Total            decimal.Decimal `json:"total"`
}

// ResourceRewards prices resource sharing for a period of at most a day.
// Usage fractions are clamped to [0,1] and bandwidth to [0,10]. More than 23
// hours of uptime earns a 10% bonus on the base reward.
func (e *Engine) ResourceRewards(u ResourceUsage, durationHours decimal.Decimal) (RewardBreakdown, error) {
	const op = "resource_rewards"
	switch {
	case durationHours.IsNegative() || durationHours.GreaterThan(maxRewardHours):
		return RewardBreakdown{}, decimalInputError(op, "duration_hours", durationHours, "must be within [0, 24]")
	case u.UptimeHours.IsNegative():
		return RewardBreakdown{}, decimalInputError(op, "uptime_hours", u.UptimeHours, "must be >= 0")
	}

	rate := decimal.NewFromFloat(e.p.RewardBaseRate)
	perHour := func(multiplier float64, usage decimal.Decimal) decimal.Decimal {
		return rate.Mul(decimal.NewFromFloat(multiplier)).Mul(usage).Mul(durationHours)
	}

	b := RewardBreakdown{
		CPU:              perHour(e.p.RewardCPUMultiplier, clampDecimal(u.CPU, decimal.Zero, one)),
		Memory:           perHour(e.p.RewardMemoryMultiplier, clampDecimal(u.Memory, decimal.Zero, one)),
		Storage:          perHour(e.p.RewardStorageMultiplier, clampDecimal(u.Storage, decimal.Zero, one)),
		Bandwidth:        rate.Mul(clampDecimal(u.Bandwidth, decimal.Zero, maxBandwidthShare)).Mul(durationHours),
		Base:             rate.Mul(durationHours),
		UptimeBonus:      decimal.Zero,
		UptimeMultiplier: one,
	}
	if u.UptimeHours.GreaterThan(uptimeBonusAfter) {
		b.UptimeBonus = b.Base.Mul(uptimeBonusRate)
		b.UptimeMultiplier = one.Add(uptimeBonusRate)
	}
	b.Total = b.CPU.Add(b.Memory).Add(b.Storage).Add(b.Bandwidth).Add(b.Base).Add(b.UptimeBonus)
	return b, nil
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
