package models

// ListingType distinguishes rental listings from sale listings.
type ListingType string

const (
	ListingRent ListingType = "Rent"
	ListingBuy  ListingType = "Buy"
)

// ListingTypes is the fixed order used by reports.
var ListingTypes = []ListingType{ListingRent, ListingBuy}

// PropertyType is the kind of property being listed.
type PropertyType string

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyVilla     PropertyType = "Villa"
	PropertyRiad      PropertyType = "Riad"
	PropertyStudio    PropertyType = "Studio"
	PropertyLand      PropertyType = "Land"
)

// PropertyTypes lists every known property type.
var PropertyTypes = []PropertyType{
	PropertyApartment, PropertyVilla, PropertyRiad, PropertyStudio, PropertyLand,
}

// Features holds every listing attribute except the price. It is the
// input of the encoder and of the predictor.
type Features struct {
	City         string
	Neighborhood string
	ListingType  ListingType
	PropertyType PropertyType
	Bedrooms     int
	Bathrooms    int
	SizeM2       int
	HasPool      bool
	HasGarden    bool
	IsFurnished  bool
	Latitude     float64
	Longitude    float64
}

// Listing is one property observation with its known price in MAD.
type Listing struct {
	Features
	Price int64
}

// MarketReport holds the aggregate statistics computed over a dataset.
type MarketReport struct {
	AveragePrices  map[string]map[ListingType]float64 `json:"average_prices"`
	PropertyCounts map[PropertyType]int                `json:"property_counts"`
	ListingsByCity map[string]int                      `json:"listings_by_city"`
	TotalListings  int                                 `json:"total_listings"`
}

// PredictionResponse is the boundary contract returned for one estimate.
type PredictionResponse struct {
	PredictedPrice float64 `json:"predicted_price"`
	Currency       string  `json:"currency"`
}

// Currency is the only currency the estimates are expressed in.
const Currency = "MAD"
