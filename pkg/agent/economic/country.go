package economic

import "strings"

// IncomeLevel is the World Bank style country income group
type IncomeLevel string

const (
	IncomeLow         IncomeLevel = "low"
	IncomeLowerMiddle IncomeLevel = "lower_middle"
	IncomeUpperMiddle IncomeLevel = "upper_middle"
	IncomeHigh        IncomeLevel = "high"
)

// CountryProfile holds the health system facts of one country. Ratios are in [0,1].
type CountryProfile struct {
	Code             string
	Name             string
	IncomeLevel      IncomeLevel
	Accessibility    float64
	Quality          float64
	PublicCoverage   float64
	GDPPerCapita     float64
	PovertyRate      float64
	CommonIssues     []string
	CulturalPractice []string
}

var countryProfiles = map[string]*CountryProfile{
	"US": {
		Code:             "US",
		Name:             "United States",
		IncomeLevel:      IncomeHigh,
		Accessibility:    0.7,
		Quality:          0.9,
		PublicCoverage:   0.5,
		GDPPerCapita:     63000,
		PovertyRate:      11.8,
		CommonIssues:     []string{"obesity", "diabetes", "heart_disease", "mental_health"},
		CulturalPractice: []string{"preventive_care", "fitness_culture"},
	},
	"CN": {
		Code:             "CN",
		Name:             "China",
		IncomeLevel:      IncomeUpperMiddle,
		Accessibility:    0.8,
		Quality:          0.75,
		PublicCoverage:   0.95,
		GDPPerCapita:     10500,
		PovertyRate:      0.6,
		CommonIssues:     []string{"respiratory_disease", "diabetes", "hypertension", "cancer"},
		CulturalPractice: []string{"traditional_medicine", "preventive_care"},
	},
	"IN": {
		Code:             "IN",
		Name:             "India",
		IncomeLevel:      IncomeLowerMiddle,
		Accessibility:    0.5,
		Quality:          0.6,
		PublicCoverage:   0.3,
		GDPPerCapita:     2100,
		PovertyRate:      21.9,
		CommonIssues:     []string{"infectious_disease", "malnutrition", "diabetes", "tuberculosis"},
		CulturalPractice: []string{"ayurveda", "yoga", "traditional_medicine"},
	},
	"BR": {
		Code:             "BR",
		Name:             "Brazil",
		IncomeLevel:      IncomeUpperMiddle,
		Accessibility:    0.7,
		Quality:          0.7,
		PublicCoverage:   0.8,
		GDPPerCapita:     8500,
		PovertyRate:      21.4,
		CommonIssues:     []string{"dengue", "diabetes", "hypertension", "mental_health"},
		CulturalPractice: []string{"preventive_care", "community_health"},
	},
}

// LookupCountry returns the profile of a two-letter country code, or nil
func LookupCountry(code string) *CountryProfile {
	return countryProfiles[strings.ToUpper(code)]
}

func (c *CountryProfile) hasIssue(issue string) bool {
	for _, i := range c.CommonIssues {
		if i == issue {
			return true
		}
	}
	return false
}

func (c *CountryProfile) hasPractice(practice string) bool {
	for _, p := range c.CulturalPractice {
		if p == practice {
			return true
		}
	}
	return false
}

// RelativeIncome classifies income against the country's GDP per capita
func (c *CountryProfile) RelativeIncome(income float64) string {
	switch {
	case income < c.GDPPerCapita*0.5:
		return "low"
	case income < c.GDPPerCapita:
		return "below_average"
	case income < c.GDPPerCapita*1.5:
		return "average"
	case income < c.GDPPerCapita*2:
		return "above_average"
	default:
		return "high"
	}
}

// AccessibilityScore combines the country system, the income factor and public
// coverage with weights 0.4/0.3/0.3. A nil income counts as factor 0.5.
func (c *CountryProfile) AccessibilityScore(income *float64) float64 {
	incomeFactor := 0.5
	if income != nil {
		incomeFactor = *income / c.GDPPerCapita
		if incomeFactor > 1 {
			incomeFactor = 1
		}
	}
	return c.Accessibility*0.4 + incomeFactor*0.3 + c.PublicCoverage*0.3
}
