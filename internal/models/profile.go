package models

import (
	"time"

	"github.com/lib/pq" // pq.StringArray for text[] columns
)

// CompanyProfile extends a COMPANY user with the details investors search on.
type CompanyProfile struct {
	UserID              string   `gorm:"primaryKey;type:uuid" json:"user_id"`
	CompanyName         string   `gorm:"not null" json:"company_name"`
	Industry            string   `gorm:"not null;index" json:"industry"`
	Location            string   `gorm:"not null" json:"location"`
	FoundingYear        *int     `json:"founding_year,omitempty"`
	TeamSize            *int     `json:"team_size,omitempty"`
	Website             *string  `json:"website,omitempty"`
	Description         string   `gorm:"type:text;not null" json:"description"`
	FundingType         string   `gorm:"not null;index" json:"funding_type"`
	FundingAmountSought float64  `gorm:"not null" json:"funding_amount_sought"`
	Equity              *float64 `json:"equity,omitempty"`
	MonthlyRevenue      *float64 `json:"monthly_revenue,omitempty"`
	PitchDeck           *string  `json:"pitch_deck,omitempty"`
	ProfileComplete     bool     `gorm:"default:false" json:"profile_complete"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// InvestorProfile extends an INVESTOR user.
// Stages and industries are stored as PostgreSQL arrays.
type InvestorProfile struct {
	UserID                string         `gorm:"primaryKey;type:uuid" json:"user_id"`
	FullName              string         `gorm:"not null" json:"full_name"`
	InvestorType          string         `gorm:"not null;index" json:"investor_type"`
	CompanyFundName       *string        `json:"company_fund_name,omitempty"`
	LocationCity          string         `gorm:"not null" json:"location_city"`
	LocationCountry       string         `gorm:"not null" json:"location_country"`
	InvestmentStages      pq.StringArray `gorm:"type:text[]" json:"investment_stages"`
	TypicalInvestmentSize string         `gorm:"not null" json:"typical_investment_size"`
	InterestedIndustries  pq.StringArray `gorm:"type:text[]" json:"interested_industries"`
	InvestmentCriteria    *string        `gorm:"type:text" json:"investment_criteria,omitempty"`
	LinkedinProfile       *string        `json:"linkedin_profile,omitempty"`
	Website               *string        `json:"website,omitempty"`
	ProfileComplete       bool           `gorm:"default:false" json:"profile_complete"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
