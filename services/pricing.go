package services

import (
	"luminastay/catalog"
	"luminastay/models"
)

const (
	// RentFloor is the minimum monthly rent. Sale listings have no floor.
	RentFloor = 1500

	NoiseMin = 0.9
	NoiseMax = 1.1

	rentPoolBonus   = 2000
	rentGardenBonus = 1000
	rentFurnished   = 1.3

	salePoolBonus      = 200000
	saleGardenBonus    = 100000
	saleFurnishedBonus = 50000
	landDiscount       = 0.8
)

var (
	rentTypeMultiplier = map[models.PropertyType]float64{
		models.PropertyVilla: 1.5,
		models.PropertyRiad:  1.8,
	}
	saleTypeMultiplier = map[models.PropertyType]float64{
		models.PropertyVilla: 1.5,
		models.PropertyRiad:  1.6,
	}
)

// PreNoisePrice applies every pricing rule except the random noise factor
// and the rent floor.
func PreNoisePrice(city *catalog.City, f models.Features) float64 {
	size := float64(f.SizeM2)
	premium := city.IsPremium(f.Neighborhood)

	if f.ListingType == models.ListingRent {
		price := size * city.BaseRentPricePerM2
		if m, ok := rentTypeMultiplier[f.PropertyType]; ok {
			price *= m
		}
		if f.HasPool {
			price += rentPoolBonus
		}
		if f.HasGarden {
			price += rentGardenBonus
		}
		if f.IsFurnished {
			price *= rentFurnished
		}
		if premium {
			price *= city.PremiumMultiplier
		}
		return price
	}

	var price float64
	if f.PropertyType == models.PropertyLand {
		price = size * (city.BaseSalePricePerM2 * landDiscount)
	} else {
		price = size * city.BaseSalePricePerM2
		if m, ok := saleTypeMultiplier[f.PropertyType]; ok {
			price *= m
		}
		if f.HasPool {
			price += salePoolBonus
		}
		if f.HasGarden {
			price += saleGardenBonus
		}
	}
	if premium {
		price *= city.PremiumMultiplier
	}
	if f.IsFurnished && f.PropertyType != models.PropertyLand {
		price += saleFurnishedBonus
	}
	return price
}

// Price turns the pre-noise price into the final integer price using the
// given noise factor, which the generator draws from [NoiseMin, NoiseMax].
func Price(city *catalog.City, f models.Features, noise float64) int64 {
	price := PreNoisePrice(city, f) * noise
	if f.ListingType == models.ListingRent && price < RentFloor {
		return RentFloor
	}
	return int64(price)
}
