package services

import (
	"math"
	"testing"

	"luminastay/catalog"
	"luminastay/models"
)

func city(t *testing.T, name string) *catalog.City {
	t.Helper()
	c, ok := catalog.Morocco().City(name)
	if !ok {
		t.Fatalf("city %s missing from catalog", name)
	}
	return c
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func TestBuyVillaPremium(t *testing.T) {
	casa := city(t, "Casablanca")
	f := models.Features{
		City: "Casablanca", Neighborhood: "Anfa",
		ListingType: models.ListingBuy, PropertyType: models.PropertyVilla,
		SizeM2: 300, HasPool: true, HasGarden: true,
	}

	if got := PreNoisePrice(casa, f); !approx(got, 7_980_000) {
		t.Fatalf("pre-noise price: got %.2f, want 7980000", got)
	}
	for _, noise := range []float64{NoiseMin, 1.0, NoiseMax} {
		got := Price(casa, f, noise)
		if got < 7_182_000-1 || got > 8_778_000 {
			t.Errorf("noise %.2f: price %d outside [7182000, 8778000]", noise, got)
		}
	}
}

func TestRentStudioAboveFloor(t *testing.T) {
	tangier := city(t, "Tangier")
	f := models.Features{
		City: "Tangier", Neighborhood: "Centre Ville",
		ListingType: models.ListingRent, PropertyType: models.PropertyStudio,
		SizeM2: 30, Bedrooms: 1, Bathrooms: 1,
	}

	if got := PreNoisePrice(tangier, f); !approx(got, 1800) {
		t.Fatalf("pre-noise price: got %.2f, want 1800", got)
	}
	for _, noise := range []float64{NoiseMin, 0.95, NoiseMax} {
		got := Price(tangier, f, noise)
		want := int64(1800 * noise)
		if got != want {
			t.Errorf("noise %.2f: got %d, want the noised value %d", noise, got, want)
		}
		if got < 1619 || got > 1980 {
			t.Errorf("noise %.2f: price %d outside [1620, 1980]", noise, got)
		}
	}
}

func TestRentFloor(t *testing.T) {
	tangier := city(t, "Tangier")
	f := models.Features{
		City: "Tangier", Neighborhood: "Marshane",
		ListingType: models.ListingRent, PropertyType: models.PropertyApartment,
		SizeM2: 10,
	}
	if got := Price(tangier, f, NoiseMin); got != RentFloor {
		t.Errorf("got %d, want floor %d", got, RentFloor)
	}

	f.ListingType = models.ListingBuy
	f.SizeM2 = 0
	if got := Price(tangier, f, NoiseMin); got != 0 {
		t.Errorf("sale listings have no floor: got %d", got)
	}
}

func TestBuyLand(t *testing.T) {
	rabat := city(t, "Rabat")
	f := models.Features{
		City: "Rabat", Neighborhood: "Agdal",
		ListingType: models.ListingBuy, PropertyType: models.PropertyLand,
		SizeM2: 1000, IsFurnished: true,
	}
	if got := PreNoisePrice(rabat, f); !approx(got, 8_800_000) {
		t.Errorf("land pre-noise price: got %.2f, want 8800000 (no furnished bonus)", got)
	}

	f.Neighborhood = "Hay Riad"
	if got := PreNoisePrice(rabat, f); !approx(got, 8_800_000*1.4) {
		t.Errorf("premium land pre-noise price: got %.2f, want %.2f", got, 8_800_000*1.4)
	}
}

func TestBuyFurnishedBonusAfterPremium(t *testing.T) {
	casa := city(t, "Casablanca")
	f := models.Features{
		City: "Casablanca", Neighborhood: "Anfa",
		ListingType: models.ListingBuy, PropertyType: models.PropertyApartment,
		SizeM2: 100, IsFurnished: true,
	}
	want := 100*12000*1.4 + 50000
	if got := PreNoisePrice(casa, f); !approx(got, want) {
		t.Errorf("got %.2f, want %.2f", got, want)
	}
}

func TestRentMultipliers(t *testing.T) {
	marrakech := city(t, "Marrakech")
	f := models.Features{
		City: "Marrakech", Neighborhood: "Medina",
		ListingType: models.ListingRent, PropertyType: models.PropertyRiad,
		SizeM2: 200, HasPool: true, HasGarden: true, IsFurnished: true,
	}
	want := (200*90*1.8 + 2000 + 1000) * 1.3
	if got := PreNoisePrice(marrakech, f); !approx(got, want) {
		t.Errorf("got %.2f, want %.2f", got, want)
	}
}

func TestPremiumMultiplierOrdering(t *testing.T) {
	for _, c := range catalog.Morocco().Cities() {
		var regular string
		for _, n := range c.Neighborhoods {
			if !c.IsPremium(n) {
				regular = n
				break
			}
		}
		for _, premium := range c.PremiumNeighborhoods {
			for _, lt := range models.ListingTypes {
				for _, pt := range []models.PropertyType{models.PropertyApartment, models.PropertyVilla, models.PropertyRiad} {
					f := models.Features{
						City: c.Name, ListingType: lt, PropertyType: pt,
						SizeM2: 250, HasPool: true, HasGarden: true,
					}
					f.Neighborhood = regular
					base := PreNoisePrice(c, f)
					f.Neighborhood = premium
					if got := PreNoisePrice(c, f); !approx(got, base*1.4) {
						t.Errorf("%s/%s %s %s: premium %.2f, want %.2f", c.Name, premium, lt, pt, got, base*1.4)
					}
				}
			}
		}
	}
}
