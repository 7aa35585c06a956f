package domain

// Tier describes the monthly course allowance for a user type.
type Tier struct {
	UserType       UserType `json:"userType"`
	Name           string   `json:"name"`
	MonthlyCourses int      `json:"monthlyCourses"`
	ProductIDs     []string `json:"productIds,omitempty"`
}

// Tiers lists the tiers for the configured limits, free first.
func Tiers(freeLimit, premiumLimit int, productIDs []string) []Tier {
	return []Tier{
		{UserType: UserTypeAnonymous, Name: "Free", MonthlyCourses: freeLimit},
		{UserType: UserTypePremium, Name: "Premium", MonthlyCourses: premiumLimit, ProductIDs: productIDs},
	}
}
