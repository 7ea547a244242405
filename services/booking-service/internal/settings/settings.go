// Package settings loads the business configuration of the salon: where it
// is, when it takes bookings and how gift cards are issued.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"gopkg.in/yaml.v3"
)

type File struct {
	Business struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"business"`

	Booking struct {
		OpenAt          string `yaml:"open_at"`
		CloseAt         string `yaml:"close_at"`
		SlotStepMinutes int    `yaml:"slot_step_minutes"`
		MinLeadMinutes  int    `yaml:"min_lead_minutes"`
		MaxAdvanceDays  int    `yaml:"max_advance_days"`
	} `yaml:"booking"`

	GiftCards struct {
		CodePrefix   string `yaml:"code_prefix"`
		Currency     string `yaml:"currency"`
		ValidityDays int    `yaml:"validity_days"`
	} `yaml:"gift_cards"`

	Categories []Category `yaml:"categories"`
}

// Category is a marketing grouping shown on the website. Services are matched
// to it by the database category name containing Title.
type Category struct {
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// Settings is the validated, typed form of File.
type Settings struct {
	BusinessName string
	Location     *time.Location

	OpenAt     clock.TimeOfDay
	CloseAt    clock.TimeOfDay
	SlotStep   time.Duration
	MinLead    time.Duration
	MaxAdvance int // days

	GiftCardPrefix   string
	GiftCardCurrency string
	GiftCardValidity time.Duration

	Categories []Category
}

// Load reads path (when non-empty), expands ${ENV} references, applies
// defaults and validates. BUSINESS_TIMEZONE overrides the file's timezone.
func Load(path string) (Settings, error) {
	var f File
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
			return Settings{}, fmt.Errorf("parse settings: %w", err)
		}
	}
	if tz := strings.TrimSpace(os.Getenv("BUSINESS_TIMEZONE")); tz != "" {
		f.Business.Timezone = tz
	}
	return f.resolve()
}

func (f File) resolve() (Settings, error) {
	applyDefaults(&f)

	loc, err := time.LoadLocation(f.Business.Timezone)
	if err != nil {
		return Settings{}, fmt.Errorf("business.timezone: %w", err)
	}
	openAt, err := clock.ParseTimeOfDay(f.Booking.OpenAt)
	if err != nil {
		return Settings{}, fmt.Errorf("booking.open_at: %w", err)
	}
	closeAt, err := clock.ParseTimeOfDay(f.Booking.CloseAt)
	if err != nil {
		return Settings{}, fmt.Errorf("booking.close_at: %w", err)
	}
	if openAt >= closeAt {
		return Settings{}, errors.New("booking.open_at must be before booking.close_at")
	}
	if f.Booking.SlotStepMinutes <= 0 || f.Booking.MinLeadMinutes < 0 || f.Booking.MaxAdvanceDays <= 0 {
		return Settings{}, errors.New("booking: slot_step_minutes and max_advance_days must be positive, min_lead_minutes not negative")
	}
	seen := map[string]bool{}
	for _, c := range f.Categories {
		if c.Slug == "" || c.Title == "" {
			return Settings{}, errors.New("categories: slug and title are required")
		}
		if seen[c.Slug] {
			return Settings{}, fmt.Errorf("categories: duplicate slug %q", c.Slug)
		}
		seen[c.Slug] = true
	}

	return Settings{
		BusinessName:     f.Business.Name,
		Location:         loc,
		OpenAt:           openAt,
		CloseAt:          closeAt,
		SlotStep:         time.Duration(f.Booking.SlotStepMinutes) * time.Minute,
		MinLead:          time.Duration(f.Booking.MinLeadMinutes) * time.Minute,
		MaxAdvance:       f.Booking.MaxAdvanceDays,
		GiftCardPrefix:   strings.ToUpper(f.GiftCards.CodePrefix),
		GiftCardCurrency: strings.ToLower(f.GiftCards.Currency),
		GiftCardValidity: time.Duration(f.GiftCards.ValidityDays) * 24 * time.Hour,
		Categories:       f.Categories,
	}, nil
}

func applyDefaults(f *File) {
	if f.Business.Name == "" {
		f.Business.Name = "JV Studio"
	}
	if f.Business.Timezone == "" {
		f.Business.Timezone = "America/Lima"
	}
	if f.Booking.OpenAt == "" {
		f.Booking.OpenAt = "09:00"
	}
	if f.Booking.CloseAt == "" {
		f.Booking.CloseAt = "21:00"
	}
	if f.Booking.SlotStepMinutes == 0 {
		f.Booking.SlotStepMinutes = 5
	}
	if f.Booking.MaxAdvanceDays == 0 {
		f.Booking.MaxAdvanceDays = 90
	}
	if f.GiftCards.CodePrefix == "" {
		f.GiftCards.CodePrefix = "JV"
	}
	if f.GiftCards.Currency == "" {
		f.GiftCards.Currency = "pen"
	}
	if f.GiftCards.ValidityDays <= 0 {
		f.GiftCards.ValidityDays = 365
	}
	if f.Categories == nil {
		f.Categories = defaultCategories()
	}
}

func defaultCategories() []Category {
	return []Category{
		{Slug: "corte-de-cabello", Title: "Corte de Cabello", Description: "Estilos clásicos y modernos diseñados para ti."},
		{Slug: "experiencia", Title: "Experiencia", Description: "Más que un servicio, un momento de relajación total."},
		{Slug: "ondulacion", Title: "Ondulación", Description: "Dale textura y movimiento a tu cabello."},
		{Slug: "limpieza-facial", Title: "Limpieza Facial", Description: "Renueva tu piel con nuestros tratamientos."},
		{Slug: "tintes", Title: "Tintes", Description: "Color y estilo profesional."},
	}
}

// Category looks a marketing category up by slug.
func (s Settings) Category(slug string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}
