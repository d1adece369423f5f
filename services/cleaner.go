package services

import (
	"fmt"
	"strings"
	"unicode"

	"luminastay/catalog"
	"luminastay/models"
	"luminastay/utils"
)

// Cleaner normalises listing text fields and checks them against the
// catalog and the property-type invariants.
type Cleaner struct {
	catalog *catalog.Catalog
	logger  *utils.Logger
}

// NewCleaner creates a Cleaner with the given catalog and logger.
func NewCleaner(cat *catalog.Catalog, logger *utils.Logger) *Cleaner {
	return &Cleaner{catalog: cat, logger: logger}
}

// Normalize trims and collapses whitespace in the categorical fields and
// restores the canonical spelling of listing and property types written in
// another letter case. Values it does not recognise are left as they are.
func (c *Cleaner) Normalize(f *models.Features) {
	f.City = normaliseText(f.City)
	f.Neighborhood = normaliseText(f.Neighborhood)

	lt := normaliseText(string(f.ListingType))
	for _, known := range models.ListingTypes {
		if strings.EqualFold(lt, string(known)) {
			lt = string(known)
		}
	}
	f.ListingType = models.ListingType(lt)

	pt := normaliseText(string(f.PropertyType))
	for _, known := range models.PropertyTypes {
		if strings.EqualFold(pt, string(known)) {
			pt = string(known)
		}
	}
	f.PropertyType = models.PropertyType(pt)
}

// Violations lists every rule the listing breaks. An empty result means the
// listing is consistent with the catalog and the property-type invariants.
func (c *Cleaner) Violations(f models.Features) []string {
	var out []string

	city, ok := c.catalog.City(f.City)
	if !ok {
		out = append(out, fmt.Sprintf("unknown city %q", f.City))
	} else if owner, _ := c.catalog.CityOf(f.Neighborhood); owner != city.Name {
		out = append(out, fmt.Sprintf("neighborhood %q is not in %s", f.Neighborhood, city.Name))
	}

	if f.ListingType != models.ListingRent && f.ListingType != models.ListingBuy {
		out = append(out, fmt.Sprintf("unknown listing type %q", f.ListingType))
	}
	if f.Bedrooms < 0 || f.Bathrooms < 0 {
		out = append(out, "room counts must not be negative")
	}
	if f.SizeM2 <= 0 {
		out = append(out, "size must be positive")
	}

	switch f.PropertyType {
	case models.PropertyLand:
		if f.Bedrooms != 0 || f.Bathrooms != 0 {
			out = append(out, "land has no bedrooms or bathrooms")
		}
		if f.HasPool || f.HasGarden {
			out = append(out, "land has no pool or garden")
		}
		if f.ListingType == models.ListingRent {
			out = append(out, "land is never rented")
		}
	case models.PropertyStudio:
		if f.Bedrooms != 1 || f.Bathrooms != 1 {
			out = append(out, "a studio has one bedroom and one bathroom")
		}
		if f.SizeM2 < 30 || f.SizeM2 > 60 {
			out = append(out, "a studio measures between 30 and 60 m2")
		}
	case models.PropertyApartment, models.PropertyVilla, models.PropertyRiad:
	default:
		out = append(out, fmt.Sprintf("unknown property type %q", f.PropertyType))
	}
	return out
}

// Clean normalises every listing and drops those that break an invariant or
// carry a rent below the floor.
func (c *Cleaner) Clean(listings []*models.Listing) []*models.Listing {
	result := make([]*models.Listing, 0, len(listings))

	for i, l := range listings {
		c.Normalize(&l.Features)
		problems := c.Violations(l.Features)
		if l.ListingType == models.ListingRent && l.Price < RentFloor {
			problems = append(problems, fmt.Sprintf("rent %d below floor %d", l.Price, RentFloor))
		}
		if len(problems) > 0 {
			c.logger.Debug("[cleaner] Dropping listing %d: %s", i+1, strings.Join(problems, "; "))
			continue
		}
		result = append(result, l)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(listings), len(result), len(listings)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
