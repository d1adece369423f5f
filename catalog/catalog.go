package catalog

import (
	"fmt"
)

// PremiumMultiplier is the uplift applied to premium neighborhoods.
const PremiumMultiplier = 1.4

// City is one immutable catalog entry.
type City struct {
	Name                 string
	BaseSalePricePerM2   float64
	BaseRentPricePerM2   float64
	CenterLat            float64
	CenterLon            float64
	Neighborhoods        []string
	PremiumNeighborhoods []string
	PremiumMultiplier    float64

	premium map[string]struct{}
}

// IsPremium reports whether the neighborhood receives the premium uplift.
func (c *City) IsPremium(neighborhood string) bool {
	_, ok := c.premium[neighborhood]
	return ok
}

// Catalog is the validated, read-only set of cities. It is safe for
// concurrent use because nothing mutates it after New returns.
type Catalog struct {
	cities []*City
	byName map[string]*City
	owner  map[string]string
}

// New validates the entries and builds a Catalog. Every neighborhood must
// belong to exactly one city and every premium neighborhood must be listed
// in its city's neighborhoods.
func New(entries []City) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: no cities")
	}

	c := &Catalog{
		byName: make(map[string]*City, len(entries)),
		owner:  make(map[string]string),
	}

	for i := range entries {
		e := entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("catalog: entry %d has no name", i)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate city %q", e.Name)
		}
		if e.BaseSalePricePerM2 <= 0 || e.BaseRentPricePerM2 <= 0 {
			return nil, fmt.Errorf("catalog: %s: base prices must be positive", e.Name)
		}
		if e.PremiumMultiplier <= 0 {
			return nil, fmt.Errorf("catalog: %s: premium multiplier must be positive", e.Name)
		}
		if len(e.Neighborhoods) == 0 {
			return nil, fmt.Errorf("catalog: %s: no neighborhoods", e.Name)
		}

		local := make(map[string]struct{}, len(e.Neighborhoods))
		for _, n := range e.Neighborhoods {
			if other, taken := c.owner[n]; taken {
				return nil, fmt.Errorf("catalog: neighborhood %q listed in both %s and %s", n, other, e.Name)
			}
			if _, dup := local[n]; dup {
				return nil, fmt.Errorf("catalog: %s: duplicate neighborhood %q", e.Name, n)
			}
			local[n] = struct{}{}
			c.owner[n] = e.Name
		}

		e.premium = make(map[string]struct{}, len(e.PremiumNeighborhoods))
		for _, p := range e.PremiumNeighborhoods {
			if _, ok := local[p]; !ok {
				return nil, fmt.Errorf("catalog: %s: premium neighborhood %q is not one of its neighborhoods", e.Name, p)
			}
			e.premium[p] = struct{}{}
		}

		e.Neighborhoods = append([]string(nil), e.Neighborhoods...)
		e.PremiumNeighborhoods = append([]string(nil), e.PremiumNeighborhoods...)

		city := &e
		c.cities = append(c.cities, city)
		c.byName[e.Name] = city
	}

	return c, nil
}

// Cities returns the entries in declaration order. Callers must not modify them.
func (c *Catalog) Cities() []*City {
	return c.cities
}

// Names returns the city names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.cities))
	for i, city := range c.cities {
		names[i] = city.Name
	}
	return names
}

// City looks up an entry by name.
func (c *Catalog) City(name string) (*City, bool) {
	city, ok := c.byName[name]
	return city, ok
}

// CityOf returns the city a neighborhood belongs to.
func (c *Catalog) CityOf(neighborhood string) (string, bool) {
	name, ok := c.owner[neighborhood]
	return name, ok
}

// Morocco returns the built-in catalog of Moroccan cities.
func Morocco() *Catalog {
	c, err := New(moroccoCities())
	if err != nil {
		panic(err)
	}
	return c
}

func moroccoCities() []City {
	return []City{
		{
			Name:                 "Casablanca",
			BaseSalePricePerM2:   12000,
			BaseRentPricePerM2:   100,
			CenterLat:            33.5731,
			CenterLon:            -7.5898,
			Neighborhoods:        []string{"Maârif", "Anfa", "Sidi Maârouf", "Hay Mockh", "Bourgogne"},
			PremiumNeighborhoods: []string{"Anfa"},
			PremiumMultiplier:    PremiumMultiplier,
		},
		{
			Name:                 "Marrakech",
			BaseSalePricePerM2:   10000,
			BaseRentPricePerM2:   90,
			CenterLat:            31.6295,
			CenterLon:            -7.9811,
			Neighborhoods:        []string{"Guéliz", "Hivernage", "Medina", "Palmeraie", "Sidi Ghanem"},
			PremiumNeighborhoods: []string{"Hivernage", "Palmeraie"},
			PremiumMultiplier:    PremiumMultiplier,
		},
		{
			Name:                 "Rabat",
			BaseSalePricePerM2:   11000,
			BaseRentPricePerM2:   85,
			CenterLat:            34.0209,
			CenterLon:            -6.8416,
			Neighborhoods:        []string{"Agdal", "Hay Riad", "Souissi", "Hassan", "Océan"},
			PremiumNeighborhoods: []string{"Hay Riad"},
			PremiumMultiplier:    PremiumMultiplier,
		},
		{
			Name:                 "Tangier",
			BaseSalePricePerM2:   9000,
			BaseRentPricePerM2:   60,
			CenterLat:            35.7595,
			CenterLon:            -5.8340,
			Neighborhoods:        []string{"Malabata", "Centre Ville", "Marshane", "Moujahidine"},
			PremiumNeighborhoods: []string{"Malabata"},
			PremiumMultiplier:    PremiumMultiplier,
		},
	}
}
