// Package profile stores the company and investor details attached to accounts.
package profile

import (
	"collective/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
)

var (
	ErrWrongRole = errors.New("profile: account role does not match profile type")
	ErrNotFound  = errors.New("profile: not found")
)

// Store persists profiles. Saves are upserts keyed by user ID; lookups return (nil, nil)
// when the profile does not exist.
type Store interface {
	SaveCompanyProfile(ctx context.Context, p *models.CompanyProfile) error
	SaveInvestorProfile(ctx context.Context, p *models.InvestorProfile) error
	GetCompanyProfile(ctx context.Context, userID string) (*models.CompanyProfile, error)
	GetInvestorProfile(ctx context.Context, userID string) (*models.InvestorProfile, error)
}

type CompanyInput struct {
	CompanyName         string   `json:"companyName" validate:"required,min=1,max=100"`
	Industry            string   `json:"industry" validate:"required"`
	Location            string   `json:"location" validate:"required"`
	FoundingYear        *int     `json:"foundingYear" validate:"omitempty,gt=0"`
	TeamSize            *int     `json:"teamSize" validate:"omitempty,gt=0"`
	Website             *string  `json:"website" validate:"omitempty,url"`
	Description         string   `json:"description" validate:"required,min=10,max=1000"`
	FundingType         string   `json:"fundingType" validate:"required"`
	FundingAmountSought float64  `json:"fundingAmountSought" validate:"gt=0"`
	Equity              *float64 `json:"equity" validate:"omitempty,min=0,max=100"`
	MonthlyRevenue      *float64 `json:"monthlyRevenue"`
	PitchDeck           *string  `json:"pitchDeck" validate:"omitempty,url"`
	ProfileComplete     bool     `json:"profileComplete"`
}

type InvestorInput struct {
	FullName              string   `json:"fullName" validate:"required,min=1,max=100"`
	InvestorType          string   `json:"investorType" validate:"required"`
	CompanyFundName       *string  `json:"companyFundName" validate:"omitempty,min=1,max=100"`
	LocationCity          string   `json:"locationCity" validate:"required"`
	LocationCountry       string   `json:"locationCountry" validate:"required"`
	InvestmentStages      []string `json:"investmentStages" validate:"required,min=1,dive,required"`
	TypicalInvestmentSize string   `json:"typicalInvestmentSize" validate:"required"`
	InterestedIndustries  []string `json:"interestedIndustries" validate:"required,min=1,dive,required"`
	InvestmentCriteria    *string  `json:"investmentCriteria" validate:"omitempty,min=10,max=1000"`
	LinkedinProfile       *string  `json:"linkedinProfile" validate:"omitempty,url"`
	Website               *string  `json:"website" validate:"omitempty,url"`
	ProfileComplete       bool     `json:"profileComplete"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError is returned when an input fails its field rules.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "profile: invalid fields: " + strings.Join(names, ", ")
}

type Service struct {
	Store    Store
	validate *validator.Validate
}

func NewService(s Store) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{Store: s, validate: v}
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, len(ve))}
	for i, fe := range ve {
		out.Fields[i] = FieldError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out.Fields[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "url":
			out.Fields[i].Message = fmt.Sprintf("%s must be a valid URL", fe.Field())
		case "min", "max":
			out.Fields[i].Message = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		default:
			out.Fields[i].Message = fmt.Sprintf("%s failed rule '%s'", fe.Field(), fe.Tag())
		}
	}
	return out
}

// UpsertCompany creates or replaces the company profile of actor.
func (s *Service) UpsertCompany(ctx context.Context, actor models.Identity, in CompanyInput) (*models.CompanyProfile, error) {
	if actor.Role != models.RoleCompany {
		return nil, ErrWrongRole
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	p := &models.CompanyProfile{
		UserID:              actor.ID,
		CompanyName:         strings.TrimSpace(in.CompanyName),
		Industry:            in.Industry,
		Location:            in.Location,
		FoundingYear:        in.FoundingYear,
		TeamSize:            in.TeamSize,
		Website:             in.Website,
		Description:         in.Description,
		FundingType:         in.FundingType,
		FundingAmountSought: in.FundingAmountSought,
		Equity:              in.Equity,
		MonthlyRevenue:      in.MonthlyRevenue,
		PitchDeck:           in.PitchDeck,
		ProfileComplete:     in.ProfileComplete,
	}
	if err := s.Store.SaveCompanyProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save company profile: %w", err)
	}
	return p, nil
}

// UpsertInvestor creates or replaces the investor profile of actor.
func (s *Service) UpsertInvestor(ctx context.Context, actor models.Identity, in InvestorInput) (*models.InvestorProfile, error) {
	if actor.Role != models.RoleInvestor {
		return nil, ErrWrongRole
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	p := &models.InvestorProfile{
		UserID:                actor.ID,
		FullName:              strings.TrimSpace(in.FullName),
		InvestorType:          in.InvestorType,
		CompanyFundName:       in.CompanyFundName,
		LocationCity:          in.LocationCity,
		LocationCountry:       in.LocationCountry,
		InvestmentStages:      pq.StringArray(in.InvestmentStages),
		TypicalInvestmentSize: in.TypicalInvestmentSize,
		InterestedIndustries:  pq.StringArray(in.InterestedIndustries),
		InvestmentCriteria:    in.InvestmentCriteria,
		LinkedinProfile:       in.LinkedinProfile,
		Website:               in.Website,
		ProfileComplete:       in.ProfileComplete,
	}
	if err := s.Store.SaveInvestorProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save investor profile: %w", err)
	}
	return p, nil
}

func (s *Service) GetCompany(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	p, err := s.Store.GetCompanyProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company profile: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) GetInvestor(ctx context.Context, userID string) (*models.InvestorProfile, error) {
	p, err := s.Store.GetInvestorProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get investor profile: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// Get returns whichever profile userID has: a *models.CompanyProfile or a *models.InvestorProfile.
func (s *Service) Get(ctx context.Context, userID string) (any, error) {
	c, err := s.Store.GetCompanyProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get company profile: %w", err)
	}
	if c != nil {
		return c, nil
	}
	return s.GetInvestor(ctx, userID)
}
