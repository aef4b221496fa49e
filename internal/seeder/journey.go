package seeder

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"shopsphere/internal/tracking"
)

// Pace lets time pass between two shopper actions. Seeding advances a mock
// clock; the simulator sleeps.
type Pace func(d time.Duration)

// Journey drives one synthetic shopper through the storefront.
type Journey struct {
	rng  *rand.Rand
	pace Pace
}

func NewJourney(rng *rand.Rand, pace Pace) *Journey {
	if pace == nil {
		pace = func(time.Duration) {}
	}
	return &Journey{rng: rng, pace: pace}
}

type cartLine struct {
	product  Product
	quantity int
}

func (j *Journey) chance(p float64) bool {
	return j.rng.Float64() < p
}

func (j *Journey) seconds(lo, hi int) time.Duration {
	return time.Duration(lo+j.rng.IntN(hi-lo+1)) * time.Second
}

// browse scrolls and clicks around the current page before moving on.
func (j *Journey) browse(tc *tracking.Context, lo, hi int) {
	tc.RecordScroll(float64(20 + j.rng.IntN(81)))
	for range j.rng.IntN(6) {
		tc.RecordInteraction()
	}
	j.pace(j.seconds(lo, hi))
}

// Run plays a whole visit: landing, optional search, a category, a few
// products, and a checkout that completes, is abandoned, or never starts.
func (j *Journey) Run(ctx context.Context, tc *tracking.Context) {
	tc.Navigate(ctx, "/")
	j.browse(tc, 3, 30)

	if j.chance(0.3) {
		q := searches[j.rng.IntN(len(searches))]
		tc.Navigate(ctx, "/search?q="+q)
		tc.TrackSearch(ctx, q, j.rng.IntN(12))
		j.browse(tc, 5, 25)
	}

	category := Categories[j.rng.IntN(len(Categories))]
	tc.Navigate(ctx, "/category/"+category.ID, tracking.WithCategory(category.ID))
	tc.TrackCategoryView(ctx, category.ID, category.Name)
	if j.chance(0.2) {
		tc.TrackFilter(ctx, map[string]any{"sort": "price_asc", "inStock": true})
	}
	j.browse(tc, 5, 45)

	candidates := productsIn(category.ID)
	var cart []cartLine
	for i := range 1 + j.rng.IntN(3) {
		p := candidates[j.rng.IntN(len(candidates))]
		tc.TrackProductClick(ctx, p.ID, p.Name, p.CategoryID, i+1)
		tc.Navigate(ctx, "/products/"+p.ID, tracking.WithProduct(p.ID), tracking.WithCategory(p.CategoryID))
		j.browse(tc, 10, 120)

		if j.chance(0.15) {
			tc.TrackWishlistAdd(ctx, p.ID, p.Name)
		}
		if j.chance(0.1) {
			tc.TrackShare(ctx, p.ID, sharePlatforms[j.rng.IntN(len(sharePlatforms))])
		}
		if j.chance(0.4) {
			qty := 1 + j.rng.IntN(3)
			tc.TrackAddToCart(ctx, p.ID, p.Name, qty, p.Price)
			cart = append(cart, cartLine{product: p, quantity: qty})
		}
	}
	if len(cart) == 0 {
		return
	}

	value, items := cartTotals(cart)
	if !j.chance(0.65) {
		if j.chance(0.5) {
			tc.TrackCartAbandon(ctx, value, items)
		}
		return
	}

	tc.Navigate(ctx, "/checkout")
	tc.TrackCheckoutStart(ctx, value, items)
	j.browse(tc, 20, 180)

	if !j.chance(0.75) {
		tc.TrackCartAbandon(ctx, value, items)
		return
	}

	orderID := "ord_" + uuid.NewString()
	tc.TrackCheckoutComplete(ctx, orderID, value, items)
	for _, line := range cart {
		tc.TrackPurchase(ctx, line.product.ID, orderID, line.product.Price*float64(line.quantity), line.quantity)
	}
	tc.Navigate(ctx, "/checkout/confirmation")
	j.browse(tc, 5, 20)
}

func cartTotals(cart []cartLine) (float64, int) {
	var value float64
	var items int
	for _, line := range cart {
		value += line.product.Price * float64(line.quantity)
		items += line.quantity
	}
	return value, items
}
