package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidDomain = goerr.New("invalid domain")
)

// Domain is one of the health reasoning tracks.
type Domain string

const (
	DomainMental   Domain = "mental"
	DomainPhysical Domain = "physical"
	DomainEconomic Domain = "economic"
)

// AllDomains returns every domain ordered by priority (highest first).
func AllDomains() []Domain {
	return []Domain{DomainMental, DomainPhysical, DomainEconomic}
}

// Validate checks if the domain is valid
func (d Domain) Validate() error {
	switch d {
	case DomainMental, DomainPhysical, DomainEconomic:
		return nil
	default:
		return goerr.Wrap(ErrInvalidDomain, "unknown domain", goerr.V("domain", d))
	}
}

// Priority is used to break ties. Higher wins: mental > physical > economic.
func (d Domain) Priority() int {
	switch d {
	case DomainMental:
		return 3
	case DomainPhysical:
		return 2
	case DomainEconomic:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether d wins a tie against other.
func (d Domain) Outranks(other Domain) bool {
	return d.Priority() > other.Priority()
}

// DefaultWeight is the fixed weight of the domain in the overall status.
func (d Domain) DefaultWeight() float64 {
	switch d {
	case DomainMental, DomainPhysical:
		return 0.4
	case DomainEconomic:
		return 0.2
	default:
		return 0
	}
}

// SortDomains orders domains by priority, highest first, in place.
func SortDomains(domains []Domain) {
	for i := 1; i < len(domains); i++ {
		for j := i; j > 0 && domains[j].Outranks(domains[j-1]); j-- {
			domains[j], domains[j-1] = domains[j-1], domains[j]
		}
	}
}
