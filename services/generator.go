package services

import (
	"math"
	"math/rand/v2"

	"luminastay/catalog"
	"luminastay/models"
	"luminastay/utils"
)

// generatorChunk is the number of listings drawn from one random stream.
// Output for a seed depends on it, so it must never change with the worker count.
const generatorChunk = 256

const coordinateStdDev = 0.02

type weighted[T any] struct {
	value  T
	weight float64
}

var (
	listingTypeWeights = []weighted[models.ListingType]{
		{models.ListingRent, 0.4},
		{models.ListingBuy, 0.6},
	}
	buyPropertyWeights = []weighted[models.PropertyType]{
		{models.PropertyApartment, 0.5},
		{models.PropertyVilla, 0.15},
		{models.PropertyRiad, 0.1},
		{models.PropertyStudio, 0.1},
		{models.PropertyLand, 0.15},
	}
	rentPropertyWeights = []weighted[models.PropertyType]{
		{models.PropertyApartment, 0.6},
		{models.PropertyVilla, 0.1},
		{models.PropertyRiad, 0.1},
		{models.PropertyStudio, 0.2},
	}
)

type intRange struct{ min, max int }

type layout struct {
	size      intRange
	bedrooms  intRange
	bathrooms intRange
}

var layouts = map[models.PropertyType]layout{
	models.PropertyLand:      {size: intRange{100, 2000}},
	models.PropertyStudio:    {size: intRange{30, 60}, bedrooms: intRange{1, 1}, bathrooms: intRange{1, 1}},
	models.PropertyApartment: {size: intRange{60, 180}, bedrooms: intRange{2, 4}, bathrooms: intRange{1, 3}},
	models.PropertyVilla:     {size: intRange{200, 800}, bedrooms: intRange{3, 8}, bathrooms: intRange{2, 6}},
	models.PropertyRiad:      {size: intRange{200, 800}, bedrooms: intRange{3, 8}, bathrooms: intRange{2, 6}},
}

// Generator produces synthetic listings that follow the pricing rules.
type Generator struct {
	catalog *catalog.Catalog
	workers int
	logger  *utils.Logger
}

// NewGenerator creates a Generator drawing cities from cat.
func NewGenerator(cat *catalog.Catalog, workers int, logger *utils.Logger) *Generator {
	return &Generator{catalog: cat, workers: workers, logger: logger}
}

// Generate returns n listings. The same seed always yields the same
// sequence, whatever the number of workers.
func (g *Generator) Generate(n int, seed uint64) []*models.Listing {
	if n <= 0 {
		return nil
	}

	out := make([]*models.Listing, n)
	chunks := (n + generatorChunk - 1) / generatorChunk

	utils.ParallelFor(utils.NewWorkerPool(g.workers), chunks, func(k int) {
		rng := rand.New(rand.NewPCG(seed, uint64(k)))
		end := min((k+1)*generatorChunk, n)
		for i := k * generatorChunk; i < end; i++ {
			out[i] = g.generateOne(rng)
		}
	})

	g.logger.Info("[generator] Generated %d listings (seed %d, %d chunks)", n, seed, chunks)
	return out
}

func (g *Generator) generateOne(rng *rand.Rand) *models.Listing {
	cities := g.catalog.Cities()
	city := cities[rng.IntN(len(cities))]

	f := models.Features{
		City:         city.Name,
		Neighborhood: city.Neighborhoods[rng.IntN(len(city.Neighborhoods))],
		ListingType:  pick(rng, listingTypeWeights),
	}
	if f.ListingType == models.ListingRent {
		f.PropertyType = pick(rng, rentPropertyWeights)
	} else {
		f.PropertyType = pick(rng, buyPropertyWeights)
	}

	l := layouts[f.PropertyType]
	f.SizeM2 = between(rng, l.size)
	f.Bedrooms = between(rng, l.bedrooms)
	f.Bathrooms = between(rng, l.bathrooms)

	if f.PropertyType != models.PropertyLand {
		switch f.PropertyType {
		case models.PropertyVilla:
			f.HasPool = rng.Float64() < 0.6
			f.HasGarden = true
		case models.PropertyRiad:
			f.HasPool = rng.Float64() < 0.6
			f.HasGarden = rng.Float64() < 0.7
		}
		f.IsFurnished = rng.Float64() < 0.5
	}

	f.Latitude = round5(city.CenterLat + rng.NormFloat64()*coordinateStdDev)
	f.Longitude = round5(city.CenterLon + rng.NormFloat64()*coordinateStdDev)

	noise := NoiseMin + (NoiseMax-NoiseMin)*rng.Float64()
	return &models.Listing{Features: f, Price: Price(city, f, noise)}
}

func pick[T any](rng *rand.Rand, choices []weighted[T]) T {
	var total float64
	for _, c := range choices {
		total += c.weight
	}
	r := rng.Float64() * total
	for _, c := range choices {
		if r < c.weight {
			return c.value
		}
		r -= c.weight
	}
	return choices[len(choices)-1].value
}

func between(rng *rand.Rand, r intRange) int {
	if r.max <= r.min {
		return r.min
	}
	return r.min + rng.IntN(r.max-r.min+1)
}

func round5(f float64) float64 {
	return math.Round(f*1e5) / 1e5
}
