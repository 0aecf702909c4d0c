package scoring

import (
	"fmt"

	"ORBScanner/internal/domain/models"
)

// VolumeScore maps relative volume to [0,100]: 1x average scores 50, 2x or
// more scores 100.
func VolumeScore(volume, avgVolume float64) float64 {
	if avgVolume <= 0 || volume < 0 {
		return Neutral
	}
	return Clamp(volume / avgVolume * 50)
}

// FlowSkew is (call - put) / (call + put), or 0 without premium.
func FlowSkew(f *models.OptionsFlow) (float64, bool) {
	if f == nil {
		return 0, false
	}
	total := f.CallPremium + f.PutPremium
	if total <= 0 || f.CallPremium < 0 || f.PutPremium < 0 {
		return 0, false
	}
	return (f.CallPremium - f.PutPremium) / total, true
}

// FlowScore rewards premium skew in the breakout direction.
func FlowScore(dir models.Direction, f *models.OptionsFlow) float64 {
	skew, ok := FlowSkew(f)
	if !ok {
		return Neutral
	}
	return Clamp(Neutral + Neutral*skew*dir.Sign())
}

// MLScore converts the model's upside probability into directional agreement.
func MLScore(dir models.Direction, m *models.ModelScore) float64 {
	if m == nil || m.ProbaUp < 0 || m.ProbaUp > 1 {
		return Neutral
	}
	if dir == models.Short {
		return Clamp((1 - m.ProbaUp) * 100)
	}
	return Clamp(m.ProbaUp * 100)
}

// PatternScore is the share of classical signals that agree with dir, plus a
// readable line per signal. Without any usable signal it is neutral.
func PatternScore(dir models.Direction, price float64, idx *models.IndexData) (float64, []string) {
	if idx == nil {
		return Neutral, nil
	}
	var agree, total int
	var notes []string
	vote := func(ok bool, note string) {
		total++
		if ok {
			agree++
			notes = append(notes, note)
		}
	}

	if idx.RSI > 0 {
		if dir == models.Long {
			vote(idx.RSI > 50, fmt.Sprintf("RSI %.1f above 50", idx.RSI))
		} else {
			vote(idx.RSI < 50, fmt.Sprintf("RSI %.1f below 50", idx.RSI))
		}
	}
	switch idx.MACDSignal {
	case models.MACDBullish, models.MACDBearish:
		want := models.MACDBullish
		if dir == models.Short {
			want = models.MACDBearish
		}
		vote(idx.MACDSignal == want, "MACD "+idx.MACDSignal)
	}
	if pv := idx.Pivots.Pivot; pv > 0 && price > 0 {
		if dir == models.Long {
			vote(price > pv, fmt.Sprintf("price above pivot %.2f", pv))
			if idx.Pivots.R1 > 0 && price > idx.Pivots.R1 {
				notes = append(notes, fmt.Sprintf("cleared R1 %.2f", idx.Pivots.R1))
			}
		} else {
			vote(price < pv, fmt.Sprintf("price below pivot %.2f", pv))
			if idx.Pivots.S1 > 0 && price < idx.Pivots.S1 {
				notes = append(notes, fmt.Sprintf("lost S1 %.2f", idx.Pivots.S1))
			}
		}
	}
	if total == 0 {
		return Neutral, notes
	}
	return Clamp(float64(agree) / float64(total) * 100), notes
}
