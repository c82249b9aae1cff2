package calendar

// yearTable holds one calendar year of exchange closures and make-up
// workdays, keyed by exact YYYY-MM-DD date string.
type yearTable struct {
	holidays       map[string]string // date -> holiday name
	makeupWorkdays map[string]string // date -> holiday being compensated
}

// yearTables follows the State Council holiday notices. Updated once per
// year when the next notice is published.
var yearTables = map[int]yearTable{
	2024: {
		holidays: map[string]string{
			"2024-01-01": "New Year's Day",
			"2024-02-10": "Spring Festival",
			"2024-02-11": "Spring Festival",
			"2024-02-12": "Spring Festival",
			"2024-02-13": "Spring Festival",
			"2024-02-14": "Spring Festival",
			"2024-02-15": "Spring Festival",
			"2024-02-16": "Spring Festival",
			"2024-02-17": "Spring Festival",
			"2024-04-04": "Qingming Festival",
			"2024-04-05": "Qingming Festival",
			"2024-04-06": "Qingming Festival",
			"2024-05-01": "Labour Day",
			"2024-05-02": "Labour Day",
			"2024-05-03": "Labour Day",
			"2024-05-04": "Labour Day",
			"2024-05-05": "Labour Day",
			"2024-06-10": "Dragon Boat Festival",
			"2024-09-15": "Mid-Autumn Festival",
			"2024-09-16": "Mid-Autumn Festival",
			"2024-09-17": "Mid-Autumn Festival",
			"2024-10-01": "National Day",
			"2024-10-02": "National Day",
			"2024-10-03": "National Day",
			"2024-10-04": "National Day",
			"2024-10-05": "National Day",
			"2024-10-06": "National Day",
			"2024-10-07": "National Day",
		},
		makeupWorkdays: map[string]string{
			"2024-02-04": "Spring Festival",
			"2024-02-18": "Spring Festival",
			"2024-04-07": "Qingming Festival",
			"2024-04-28": "Labour Day",
			"2024-05-11": "Labour Day",
			"2024-09-14": "Mid-Autumn Festival",
			"2024-09-29": "National Day",
			"2024-10-12": "National Day",
		},
	},
	2025: {
		holidays: map[string]string{
			"2025-01-01": "New Year's Day",
			"2025-01-28": "Spring Festival",
			"2025-01-29": "Spring Festival",
			"2025-01-30": "Spring Festival",
			"2025-01-31": "Spring Festival",
			"2025-02-01": "Spring Festival",
			"2025-02-02": "Spring Festival",
			"2025-02-03": "Spring Festival",
			"2025-02-04": "Spring Festival",
			"2025-04-04": "Qingming Festival",
			"2025-04-05": "Qingming Festival",
			"2025-04-06": "Qingming Festival",
			"2025-05-01": "Labour Day",
			"2025-05-02": "Labour Day",
			"2025-05-03": "Labour Day",
			"2025-05-04": "Labour Day",
			"2025-05-05": "Labour Day",
			"2025-05-31": "Dragon Boat Festival",
			"2025-06-01": "Dragon Boat Festival",
			"2025-06-02": "Dragon Boat Festival",
			"2025-10-01": "National Day",
			"2025-10-02": "National Day",
			"2025-10-03": "National Day",
			"2025-10-04": "National Day",
			"2025-10-05": "National Day",
			"2025-10-06": "Mid-Autumn Festival",
			"2025-10-07": "National Day",
			"2025-10-08": "National Day",
		},
		makeupWorkdays: map[string]string{
			"2025-01-26": "Spring Festival",
			"2025-02-08": "Spring Festival",
			"2025-04-27": "Labour Day",
			"2025-09-28": "National Day",
			"2025-10-11": "National Day",
		},
	},
	2026: {
		holidays: map[string]string{
			"2026-01-01": "New Year's Day",
			"2026-01-02": "New Year's Day",
			"2026-02-16": "Spring Festival",
			"2026-02-17": "Spring Festival",
			"2026-02-18": "Spring Festival",
			"2026-02-19": "Spring Festival",
			"2026-02-20": "Spring Festival",
			"2026-02-21": "Spring Festival",
			"2026-02-22": "Spring Festival",
			"2026-04-04": "Qingming Festival",
			"2026-04-05": "Qingming Festival",
			"2026-04-06": "Qingming Festival",
			"2026-05-01": "Labour Day",
			"2026-05-02": "Labour Day",
			"2026-05-03": "Labour Day",
			"2026-05-04": "Labour Day",
			"2026-05-05": "Labour Day",
			"2026-06-19": "Dragon Boat Festival",
			"2026-09-25": "Mid-Autumn Festival",
			"2026-10-01": "National Day",
			"2026-10-02": "National Day",
			"2026-10-03": "National Day",
			"2026-10-04": "National Day",
			"2026-10-05": "National Day",
			"2026-10-06": "National Day",
			"2026-10-07": "National Day",
		},
		makeupWorkdays: map[string]string{
			"2026-02-15": "Spring Festival",
			"2026-02-28": "Spring Festival",
			"2026-04-26": "Labour Day",
			"2026-09-27": "National Day",
			"2026-10-10": "National Day",
		},
	},
}
