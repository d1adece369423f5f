package ml

import (
	"errors"
	"math"
	"slices"
	"strconv"

	"luminastay/models"
)

// NumericFields are passed through unchanged, in this order, at the start
// of every encoded vector.
var NumericFields = []string{
	"Bedrooms", "Bathrooms", "Size_m2", "Has_Pool", "Has_Garden", "Is_Furnished", "Latitude", "Longitude",
}

// CategoricalFields are one-hot encoded after the numeric block.
var CategoricalFields = []string{"City", "Neighborhood", "Property_Type", "Listing_Type"}

// Scheme is the categorical encoding frozen at fit time. A value that was
// not seen during fit encodes as all zeros for its field.
type Scheme struct {
	Categories [][]string

	index []map[string]int
}

// FitScheme records the distinct category values of each categorical field,
// sorted so the layout does not depend on row order.
func FitScheme(rows []models.Features) *Scheme {
	seen := make([]map[string]struct{}, len(CategoricalFields))
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}
	for _, r := range rows {
		for i, v := range categoricalValues(r) {
			seen[i][v] = struct{}{}
		}
	}

	s := &Scheme{Categories: make([][]string, len(CategoricalFields))}
	for i, set := range seen {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		slices.Sort(values)
		s.Categories[i] = values
	}
	s.prepare()
	return s
}

// prepare builds the lookup index. It must run before the scheme is shared.
func (s *Scheme) prepare() {
	s.index = make([]map[string]int, len(s.Categories))
	for i, values := range s.Categories {
		m := make(map[string]int, len(values))
		for j, v := range values {
			m[v] = j
		}
		s.index[i] = m
	}
}

// Width is the length of every encoded vector.
func (s *Scheme) Width() int {
	w := len(NumericFields)
	for _, values := range s.Categories {
		w += len(values)
	}
	return w
}

// FeatureNames names each position of the encoded vector.
func (s *Scheme) FeatureNames() []string {
	names := append([]string(nil), NumericFields...)
	for i, values := range s.Categories {
		for _, v := range values {
			names = append(names, CategoricalFields[i]+"="+v)
		}
	}
	return names
}

// Transform encodes one listing. It only fails on a non-finite coordinate;
// unknown category values are not an error.
func (s *Scheme) Transform(f models.Features) ([]float64, error) {
	for _, c := range []struct {
		name string
		v    float64
	}{{"Latitude", f.Latitude}, {"Longitude", f.Longitude}} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return nil, &models.EncodingError{
				Field:  c.name,
				Value:  strconv.FormatFloat(c.v, 'f', -1, 64),
				Reason: "not a finite number",
			}
		}
	}

	vec := make([]float64, s.Width())
	vec[0] = float64(f.Bedrooms)
	vec[1] = float64(f.Bathrooms)
	vec[2] = float64(f.SizeM2)
	vec[3] = boolFloat(f.HasPool)
	vec[4] = boolFloat(f.HasGarden)
	vec[5] = boolFloat(f.IsFurnished)
	vec[6] = f.Latitude
	vec[7] = f.Longitude

	offset := len(NumericFields)
	for i, v := range categoricalValues(f) {
		if j, ok := s.lookup(i, v); ok {
			vec[offset+j] = 1
		}
		offset += len(s.Categories[i])
	}
	return vec, nil
}

func (s *Scheme) lookup(field int, v string) (int, bool) {
	if s.index != nil {
		j, ok := s.index[field][v]
		return j, ok
	}
	j := slices.Index(s.Categories[field], v)
	return j, j >= 0
}

// EncodeBatch encodes listings with a known price. Records that fail to
// encode or carry a non-positive price are left out and reported in rejected;
// the rest of the batch is still encoded.
func EncodeBatch(s *Scheme, listings []*models.Listing) (x [][]float64, y []float64, rejected []error) {
	x = make([][]float64, 0, len(listings))
	y = make([]float64, 0, len(listings))

	for i, l := range listings {
		if l.Price <= 0 {
			rejected = append(rejected, &models.EncodingError{
				Row:    i + 1,
				Field:  "Price_MAD",
				Value:  strconv.FormatInt(l.Price, 10),
				Reason: "price must be positive",
			})
			continue
		}
		vec, err := s.Transform(l.Features)
		if err != nil {
			var encErr *models.EncodingError
			if errors.As(err, &encErr) {
				encErr.Row = i + 1
			}
			rejected = append(rejected, err)
			continue
		}
		x = append(x, vec)
		y = append(y, float64(l.Price))
	}
	return x, y, rejected
}

func categoricalValues(f models.Features) [4]string {
	return [4]string{f.City, f.Neighborhood, string(f.PropertyType), string(f.ListingType)}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
