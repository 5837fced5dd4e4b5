package tables

func str(s string) *string { return &s }

// SeedCurrencies returns the currencies loaded on first start.
func SeedCurrencies() []*Currency {
	return []*Currency{
		{Title: "USD", Description: str("United States Dollar")},
		{Title: "EUR", Description: str("Euro")},
		{Title: "GBP", Description: str("British Pound Sterling")},
		{Title: "INR", Description: str("Indian Rupee")},
		{Title: "JPY", Description: str("Japanese Yen")},
		{Title: "CNY", Description: str("Chinese Yuan")},
		{Title: "AUD", Description: str("Australian Dollar")},
		{Title: "CAD", Description: str("Canadian Dollar")},
		{Title: "CHF", Description: str("Swiss Franc")},
		{Title: "RUB", Description: str("Russian Ruble")},
	}
}

// SeedLanguages returns the languages loaded on first start.
func SeedLanguages() []*Language {
	return []*Language{
		{Title: "English", Description: str("English language")},
		{Title: "Spanish", Description: str("Spanish language")},
		{Title: "French", Description: str("French language")},
		{Title: "German", Description: str("German language")},
		{Title: "Chinese", Description: str("Chinese language")},
		{Title: "Japanese", Description: str("Japanese language")},
		{Title: "Russian", Description: str("Russian language")},
		{Title: "Hindi", Description: str("Hindi language")},
		{Title: "Sanskrit", Description: str("Sanskrit language")},
		{Title: "Portuguese", Description: str("Portuguese language")},
	}
}
