package advise

import (
	"fmt"

	"agro-advisor/internal/crop"
	"agro-advisor/internal/yield"
)

// Factor names used as factor_impact keys, in limiting priority order.
const (
	FactorSoil        = "soil_quality"
	FactorRainfall    = "rainfall"
	FactorTemperature = "temperature"
	FactorFertilizer  = "fertilizer"
)

// Limiting factor tokens.
const (
	LimitSoilLow         = "низкое качество почвы"
	LimitSoilHigh        = "избыточная насыщенность почвы"
	LimitRainfallLow     = "недостаток осадков"
	LimitRainfallHigh    = "избыток осадков"
	LimitTemperatureLow  = "низкая температура"
	LimitTemperatureHigh = "высокая температура"
	LimitFertilizer      = "отсутствие удобрений"

	// AllInRange is reported as the main improvement when nothing limits.
	AllInRange = "все факторы в норме"
)

// Analysis explains how each input factor relates to the crop's bands.
type Analysis struct {
	FactorImpact    map[string]string `json:"factor_impact"`
	LimitingFactors []string          `json:"limiting_factors"`
	MainImprovement string            `json:"main_improvement"`
}

// AnalyzeFactors classifies soil, rainfall, temperature and fertilizer use
// against p. Limiting factors keep the priority order soil, rainfall,
// temperature, fertilizer, and name the side of the band a value is on.
func AnalyzeFactors(p *crop.Profile, in yield.Input) Analysis {
	soil := p.Soil.Position(in.SoilQuality)
	rain := p.Rainfall.Position(in.Rainfall)
	temp := p.Temperature.Position(in.Temperature)

	a := Analysis{
		FactorImpact: map[string]string{
			FactorSoil: fmt.Sprintf("Качество почвы (%g/10) - %s", in.SoilQuality,
				verdict(soil, "требует улучшения", "оптимальное", "избыточное")),
			FactorRainfall: fmt.Sprintf("Осадки (%g мм) - %s", in.Rainfall,
				verdict(rain, "недостаточно", "достаточно", "избыточно")),
			FactorTemperature: fmt.Sprintf("Температура (%g°C) - %s", in.Temperature,
				verdict(temp, "экстремально низкая", "комфортная", "экстремально высокая")),
			FactorFertilizer: "Удобрения - не используются",
		},
		LimitingFactors: []string{},
	}
	if in.Fertilizer {
		a.FactorImpact[FactorFertilizer] = "Удобрения - используются"
	}

	for _, f := range []struct {
		pos          int
		below, above string
	}{
		{soil, LimitSoilLow, LimitSoilHigh},
		{rain, LimitRainfallLow, LimitRainfallHigh},
		{temp, LimitTemperatureLow, LimitTemperatureHigh},
	} {
		if f.pos != 0 {
			a.LimitingFactors = append(a.LimitingFactors, verdict(f.pos, f.below, "", f.above))
		}
	}
	if !in.Fertilizer {
		a.LimitingFactors = append(a.LimitingFactors, LimitFertilizer)
	}

	a.MainImprovement = AllInRange
	if len(a.LimitingFactors) > 0 {
		a.MainImprovement = a.LimitingFactors[0]
	}
	return a
}

func verdict(pos int, below, inside, above string) string {
	switch pos {
	case -1:
		return below
	case 1:
		return above
	default:
		return inside
	}
}

// ForYield returns suggestions for out-of-band factors, then fertilizer
// advice, then standing monitoring tips naming the crop.
func ForYield(p *crop.Profile, in yield.Input) []string {
	var out []string

	switch p.Soil.Position(in.SoilQuality) {
	case -1:
		out = append(out, "Качество почвы низкое. Добавьте органические удобрения и компост.")
	case 1:
		out = append(out, fmt.Sprintf("Почва выше оптимального уровня для %s. Рассмотрите внесение кислых удобрений.", p.ID))
	}
	switch p.Rainfall.Position(in.Rainfall) {
	case -1:
		out = append(out, fmt.Sprintf("Осадков недостаточно для %s. Организуйте дополнительный полив.", p.ID))
	case 1:
		out = append(out, fmt.Sprintf("Осадков слишком много для %s. Убедитесь в хорошем дренаже почвы.", p.ID))
	}
	switch p.Temperature.Position(in.Temperature) {
	case -1:
		out = append(out, fmt.Sprintf("Температура ниже оптимальной для %s. Рассмотрите использование укрывных материалов.", p.ID))
	case 1:
		out = append(out, fmt.Sprintf("Температура выше оптимальной для %s. Обеспечьте затенение и дополнительный полив.", p.ID))
	}

	if in.Fertilizer {
		out = append(out, "Продолжайте использовать удобрения, но следите за балансом питательных веществ.")
	} else {
		out = append(out, "Использование удобрений может увеличить урожайность на 20-30%.")
	}

	return append(out,
		fmt.Sprintf("Регулярно мониторьте состояние %s в течение сезона", p.ID),
		"Ведите учет погодных условий и применяемых агротехнических мероприятий",
		"Консультируйтесь с местными агрономами для точных рекомендаций",
	)
}
