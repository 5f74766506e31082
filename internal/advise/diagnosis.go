// Package advise builds the advisory text attached to diagnosis and yield
// results. All output is deterministic for a given input.
package advise

import "agro-advisor/internal/classify"

var labelAdvice = map[classify.Label][]string{
	classify.Healthy: {
		"✅ Растение в отличном состоянии!",
		"💧 Продолжайте текущий режим полива",
		"🌞 Обеспечьте достаточное освещение",
		"📝 Регулярно проверяйте состояние листьев",
	},
	classify.FungalInfection: {
		"🍄 Обнаружены признаки грибковой инфекции",
		"💨 Улучшите вентиляцию вокруг растения",
		"💧 Избегайте переувлажнения почвы",
		"🛡️ Примените биологический фунгицид",
		"🍂 Удалите пораженные листья",
	},
	classify.BacterialInfection: {
		"🦠 Выявлены симптомы бактериального заражения",
		"🏥 Изолируйте растение от других",
		"✂️ Удалите сильно пораженные участки",
		"🧴 Используйте медьсодержащие препараты",
		"💨 Обеспечьте хорошую циркуляцию воздуха",
	},
	classify.ViralInfection: {
		"🦠 Признаки вирусной инфекции",
		"🐜 Боритесь с насекомыми-переносчиками",
		"🏥 Срочно изолируйте растение",
		"💊 Используйте стимуляторы иммунитета",
		"🌱 Рассмотрите замену растения",
	},
	classify.NutrientDeficiency: {
		"🌱 Обнаружен дефицит питательных веществ",
		"🧪 Проведите анализ почвы",
		"💩 Внесите сбалансированные удобрения",
		"💧 Отрегулируйте pH поливной воды",
		"📈 Увеличьте содержание органики в почве",
	},
}

var generalAdvice = []string{
	"Регулярно осматривайте растения",
	"Ведите дневник наблюдений",
	"Консультируйтесь с агрономом при сомнениях",
}

// ForDiagnosis returns the label-specific advice followed by the general
// advice. Labels outside the closed set get the general advice only.
func ForDiagnosis(label classify.Label) []string {
	specific := labelAdvice[label]
	out := make([]string, 0, len(specific)+len(generalAdvice))
	out = append(out, specific...)
	return append(out, generalAdvice...)
}
