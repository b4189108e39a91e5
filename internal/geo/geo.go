// Package geo holds the geocoding and place-lookup collaborators. Both
// are thin passthroughs over a Google-Maps-style JSON API; results are
// normalized into the pipeline's own location and place types, with the
// country code filled from the regional table when the upstream omits it.
package geo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/geo/region"
	"github.com/wayline/tour-audio-pipeline/providers/common/httpclient"
)

const (
	GeocoderID = "geo-geocode"
	PlacesID   = "geo-places"
)

// ErrNoResults indicates the upstream answered 2xx with an empty result
// set for the query.
var ErrNoResults = errors.New("geo: no results for query")

type Config struct {
	APIKey          string
	GeocodeEndpoint string
	PlacesEndpoint  string
	Timeout         time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:          os.Getenv("TAP_GEO_API_KEY"),
		GeocodeEndpoint: defaultString(os.Getenv("TAP_GEO_GEOCODE_ENDPOINT"), "https://maps.googleapis.com/maps/api/geocode/json"),
		PlacesEndpoint:  defaultString(os.Getenv("TAP_GEO_PLACES_ENDPOINT"), "https://maps.googleapis.com/maps/api/place/nearbysearch/json"),
		Timeout:         30 * time.Second,
	}
}

// Geocoder resolves free-text addresses into structured locations.
type Geocoder struct {
	apiKey string
	http   *httpclient.Client
}

func NewGeocoder(cfg Config) (*Geocoder, error) {
	http, err := httpclient.New(httpclient.Config{
		ProviderID: GeocoderID,
		Endpoint:   cfg.GeocodeEndpoint,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Geocoder{apiKey: cfg.APIKey, http: http}, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// Geocode resolves an address into a Location. The street name falls
// back to the query when the upstream reports no route component.
func (g *Geocoder) Geocode(ctx context.Context, address string) (tour.Location, error) {
	if strings.TrimSpace(address) == "" {
		return tour.Location{}, fmt.Errorf("%s: address is required", GeocoderID)
	}

	query := url.Values{}
	query.Set("address", address)
	if g.apiKey != "" {
		query.Set("key", g.apiKey)
	}

	var resp geocodeResponse
	if err := g.http.GetJSON(ctx, query, &resp); err != nil {
		return tour.Location{}, err
	}
	if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
		return tour.Location{}, fmt.Errorf("%w: %q", ErrNoResults, address)
	}
	if resp.Status != "OK" {
		return tour.Location{}, fmt.Errorf("%s: upstream status %s", GeocoderID, resp.Status)
	}

	best := resp.Results[0]
	loc := tour.Location{
		FormattedAddress: best.FormattedAddress,
		Latitude:         best.Geometry.Location.Lat,
		Longitude:        best.Geometry.Location.Lng,
	}
	for _, component := range best.AddressComponents {
		switch {
		case hasType(component.Types, "route"):
			loc.StreetName = component.LongName
		case hasType(component.Types, "neighborhood"), hasType(component.Types, "sublocality"):
			if loc.Area == "" {
				loc.Area = component.LongName
			}
		case hasType(component.Types, "locality"):
			loc.City = component.LongName
		case hasType(component.Types, "country"):
			loc.Country = component.LongName
			loc.CountryCode = component.ShortName
		}
	}
	if loc.StreetName == "" {
		loc.StreetName = strings.TrimSpace(address)
	}
	if loc.CountryCode == "" {
		loc.CountryCode = region.ISOCode(loc.Country)
	}
	return loc, nil
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// Places looks up points of interest around a coordinate.
type Places struct {
	apiKey string
	http   *httpclient.Client
}

func NewPlaces(cfg Config) (*Places, error) {
	http, err := httpclient.New(httpclient.Config{
		ProviderID: PlacesID,
		Endpoint:   cfg.PlacesEndpoint,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Places{apiKey: cfg.APIKey, http: http}, nil
}

type placesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name             string   `json:"name"`
		Types            []string `json:"types"`
		Vicinity         string   `json:"vicinity"`
		PlaceID          string   `json:"place_id"`
		Rating           float64  `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
	} `json:"results"`
}

// Nearby returns points of interest within radiusMeters of the
// coordinate, in upstream ranking order. An empty result set is not an
// error; callers treat nearby places as optional color.
func (p *Places) Nearby(ctx context.Context, lat, lng float64, radiusMeters int) ([]tour.Place, error) {
	if radiusMeters < 1 {
		return nil, fmt.Errorf("%s: radius must be >= 1 meter, got %d", PlacesID, radiusMeters)
	}

	query := url.Values{}
	query.Set("location", fmt.Sprintf("%.6f,%.6f", lat, lng))
	query.Set("radius", strconv.Itoa(radiusMeters))
	if p.apiKey != "" {
		query.Set("key", p.apiKey)
	}

	var resp placesResponse
	if err := p.http.GetJSON(ctx, query, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("%s: upstream status %s", PlacesID, resp.Status)
	}

	places := make([]tour.Place, 0, len(resp.Results))
	for _, result := range resp.Results {
		places = append(places, tour.Place{
			Name:        result.Name,
			Types:       result.Types,
			Address:     result.Vicinity,
			PlaceID:     result.PlaceID,
			Rating:      result.Rating,
			ReviewCount: result.UserRatingsTotal,
		})
	}
	return places, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
