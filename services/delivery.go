package services

import (
	"context"
	"math"
	"sort"

	"food-whatsapp/models"
)

const earthRadiusKm = 6371

// HaversineDistanceKm is the great-circle distance between a and b.
func HaversineDistanceKm(a, b models.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// ResolveFee returns the fee of the first tier (ascending by MaxKm) whose threshold covers
// distanceKm. Beyond every tier the largest tier's fee applies. No tiers means no fee.
func ResolveFee(distanceKm float64, tiers []models.DeliveryRate) int64 {
	if len(tiers) == 0 {
		return 0
	}
	sorted := make([]models.DeliveryRate, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MaxKm < sorted[j].MaxKm })
	for _, t := range sorted {
		if distanceKm <= t.MaxKm {
			return t.Fee
		}
	}
	return sorted[len(sorted)-1].Fee
}

// Quote is a delivery fee estimate. Known is false when it could not be computed
// (no tiers configured, or shop or customer location missing); Fee is then 0.
type Quote struct {
	DistanceKm float64
	Fee        int64
	Known      bool
}

// Pricing computes delivery quotes from the shop location and the stored tiers.
type Pricing struct {
	rates RateRepository
	shop  *models.GeoPoint
}

func NewPricing(rates RateRepository, shop *models.GeoPoint) *Pricing {
	return &Pricing{rates: rates, shop: shop}
}

func (p *Pricing) Quote(ctx context.Context, customer *models.GeoPoint) (Quote, error) {
	if p.shop == nil || customer == nil {
		return Quote{}, nil
	}
	tiers, err := p.rates.ListDeliveryRates(ctx)
	if err != nil {
		return Quote{}, err
	}
	if len(tiers) == 0 {
		return Quote{}, nil
	}
	d := HaversineDistanceKm(*p.shop, *customer)
	return Quote{DistanceKm: math.Round(d*100) / 100, Fee: ResolveFee(d, tiers), Known: true}, nil
}

// Rates returns the configured tiers, ascending.
func (p *Pricing) Rates(ctx context.Context) ([]models.DeliveryRate, error) {
	tiers, err := p.rates.ListDeliveryRates(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MaxKm < tiers[j].MaxKm })
	return tiers, nil
}

// ReplaceRates validates and stores a new tier set.
func (p *Pricing) ReplaceRates(ctx context.Context, tiers []models.DeliveryRate) error {
	for _, t := range tiers {
		if t.MaxKm <= 0 || t.Fee < 0 {
			return ErrInvalidRate
		}
	}
	return p.rates.ReplaceDeliveryRates(ctx, tiers)
}

// SeedRates stores tiers only when none exist yet.
func (p *Pricing) SeedRates(ctx context.Context, tiers []models.DeliveryRate) error {
	existing, err := p.rates.ListDeliveryRates(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 || len(tiers) == 0 {
		return nil
	}
	return p.rates.ReplaceDeliveryRates(ctx, tiers)
}
